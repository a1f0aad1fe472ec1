package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/ssargent/tagtree/pkg/blockstore"
	"github.com/ssargent/tagtree/pkg/bptree"
)

// Server holds the inspection API server state.
type Server struct {
	engine  *bptree.Engine
	config  ServerConfig
	metrics *Metrics
}

// NewServer creates a new inspection API server over engine.
func NewServer(engine *bptree.Engine, config ServerConfig, metrics *Metrics) *Server {
	return &Server{
		engine:  engine,
		config:  config,
		metrics: metrics,
	}
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Get the health status of the API
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/health [get]
//	@Security		ApiKeyAuth
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleGetTag godoc
//
//	@Summary		Get inodes for a tag
//	@Description	Return the inodes associated with a top-level tag key
//	@Tags			tags
//	@Produce		json
//	@Param			key	path		string	true	"Tag key"
//	@Success		200	{object}	TagResponse
//	@Failure		404	{object}	map[string]string
//	@Security		ApiKeyAuth
//	@Router			/tags/{key} [get]
func (s *Server) handleGetTag(w http.ResponseWriter, r *http.Request) {
	key, err := url.QueryUnescape(chi.URLParam(r, "key"))
	if err != nil {
		sendError(w, "invalid key encoding", http.StatusBadRequest)
		return
	}

	inodes, err := s.engine.Get(key)
	if err != nil {
		s.recordDBOp("get", false)
		if err == blockstore.ErrNotFound {
			sendError(w, "tag not found", http.StatusNotFound)
			return
		}
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.recordDBOp("get", true)
	sendSuccess(w, TagResponse{Key: key, Inodes: inodesToUint32(inodes)})
}

// handleGetSubTag godoc
//
//	@Summary		Get inodes for a nested tag
//	@Description	Return the inodes associated with a key nested under a parent tag's subkeys tree
//	@Tags			tags
//	@Produce		json
//	@Param			key		path		string	true	"Parent tag key"
//	@Param			subkey	path		string	true	"Nested tag key"
//	@Success		200		{object}	TagResponse
//	@Failure		404		{object}	map[string]string
//	@Security		ApiKeyAuth
//	@Router			/tags/{key}/sub/{subkey} [get]
func (s *Server) handleGetSubTag(w http.ResponseWriter, r *http.Request) {
	key, err := url.QueryUnescape(chi.URLParam(r, "key"))
	if err != nil {
		sendError(w, "invalid key encoding", http.StatusBadRequest)
		return
	}
	subkey, err := url.QueryUnescape(chi.URLParam(r, "subkey"))
	if err != nil {
		sendError(w, "invalid subkey encoding", http.StatusBadRequest)
		return
	}

	inodes, err := s.engine.GetNested(key, subkey)
	if err != nil {
		s.recordDBOp("get_nested", false)
		if err == blockstore.ErrNotFound {
			sendError(w, "tag not found", http.StatusNotFound)
			return
		}
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.recordDBOp("get_nested", true)
	sendSuccess(w, TagResponse{Key: subkey, Inodes: inodesToUint32(inodes)})
}

// handleExplain godoc
//
//	@Summary		Explain container structure
//	@Description	Report block accounting, free-list length and cache effectiveness
//	@Tags			diagnostics
//	@Produce		json
//	@Success		200	{object}	ExplainResponse
//	@Security		ApiKeyAuth
//	@Router			/explain [get]
func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.Explain()
	if err != nil {
		s.recordDBOp("explain", false)
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.recordDBOp("explain", true)
	if s.metrics != nil {
		s.metrics.UpdateKeyTotal(result.KeyCount)
	}
	sendSuccess(w, ExplainResponse{
		SessionID:  result.SessionID.String(),
		MaxSize:    uint32(result.MaxSize),
		RootIndex:  uint32(result.RootIndex),
		KeyCount:   result.KeyCount,
		FreeBlocks: result.FreeBlocks,
		CacheHits:  result.CacheHits,
		CacheMiss:  result.CacheMiss,
	})
}

func (s *Server) recordDBOp(op string, success bool) {
	if s.metrics != nil {
		s.metrics.RecordDBOperation(op, success, 0)
	}
}

func inodesToUint32(inodes []blockstore.Inode) []uint32 {
	out := make([]uint32, len(inodes))
	for i, inode := range inodes {
		out[i] = uint32(inode)
	}
	return out
}
