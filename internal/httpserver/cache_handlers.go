package httpserver

import "net/http"

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeResponse(w, s.services.Cache.Stats())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.services.Cache.Clear()
	s.writeResponse(w, s.services.Cache.Stats())
}

func (s *Server) handleCacheCleanup(w http.ResponseWriter, r *http.Request) {
	s.writeResponse(w, s.services.Cache.Cleanup())
}
