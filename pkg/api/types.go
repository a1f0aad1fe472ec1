package api

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// TagResponse describes the inodes tagged with a key.
type TagResponse struct {
	Key    string   `json:"key"`
	Inodes []uint32 `json:"inodes"`
}

// ExplainResponse mirrors bptree.ExplainResult for JSON consumers.
type ExplainResponse struct {
	SessionID  string `json:"session_id"`
	MaxSize    uint32 `json:"max_size"`
	RootIndex  uint32 `json:"root_index"`
	KeyCount   int    `json:"key_count"`
	FreeBlocks int    `json:"free_blocks"`
	CacheHits  uint64 `json:"cache_hits"`
	CacheMiss  uint64 `json:"cache_misses"`
}

// ServerConfig holds configuration for the inspection API server.
type ServerConfig struct {
	Port   int
	APIKey string
}
