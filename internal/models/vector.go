package models

// VectorEntry is one embedded code block in the vector store.
type VectorEntry struct {
	ID            string    `json:"id"`
	Embedding     []float32 `json:"embedding"`
	Code          string    `json:"code"`
	Description   string    `json:"description,omitempty"`
	ComponentName string    `json:"componentName"`
	MethodName    string    `json:"methodName,omitempty"`
	FilePath      string    `json:"filePath"`
}
