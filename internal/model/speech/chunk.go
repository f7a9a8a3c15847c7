package speech

import "time"

// StreamingASRChunk 流式识别的一次结果，Text 为截至目前的完整转写
type StreamingASRChunk struct {
	Text      string    `json:"text"`
	IsFinal   bool      `json:"isFinal"`
	Sequence  int32     `json:"sequence"`
	Duration  int64     `json:"duration"` // milliseconds
	CreatedAt time.Time `json:"createdAt"`
}
