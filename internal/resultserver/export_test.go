package resultserver

import "net/http"

func (s *Server) WriteJSON(w http.ResponseWriter, status int, v any) {
	s.writeJSON(w, status, v)
}
