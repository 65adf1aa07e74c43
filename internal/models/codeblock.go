package models

// CodeBlock is a fingerprinted unit of source: an entity body or one of its
// methods.
type CodeBlock struct {
	EntityID   string         `json:"entityId"`
	EntityName string         `json:"entityName"`
	MethodName string         `json:"methodName,omitempty"`
	Code       string         `json:"code"`
	FilePath   string         `json:"filePath"`
	Hash       string         `json:"hash"`
	Tokens     map[string]int `json:"tokens"`
	Skeleton   []string       `json:"skeleton"`
	StartLine  int            `json:"startLine,omitempty"`
	EndLine    int            `json:"endLine,omitempty"`
}

// ID is the block identity used for pair bookkeeping and warnings.
func (b *CodeBlock) ID() string {
	if b.MethodName == "" {
		return b.EntityID
	}
	return b.EntityID + "#" + b.MethodName
}

// SameBlock reports whether a and b denote the same (entity, method, file)
// tuple. Such pairs are never compared.
func SameBlock(a, b *CodeBlock) bool {
	return a.EntityID == b.EntityID && a.MethodName == b.MethodName && a.FilePath == b.FilePath
}
