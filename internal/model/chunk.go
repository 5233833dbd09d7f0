package model

// Chunk is a contiguous page range whose text fits one extraction call.
type Chunk struct {
	ID        string `json:"id"`
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
	Text      string `json:"text"`
}

// ChunkRef is what the orchestrator fans out to the extract step: the chunk
// id plus the shared short summary and document source name.
type ChunkRef struct {
	ID      string          `json:"id"`
	Summary DocumentSummary `json:"summary"`
	Source  string          `json:"source"`
}
