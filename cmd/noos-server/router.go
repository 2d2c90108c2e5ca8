package main

import (
	"github.com/gorilla/mux"
)

// buildRouter wires every API path to its handler. Paths
// are grouped by subsystem in declaration order, matching the wire table.
func (s *server) buildRouter() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/file/upload/{kind}/async", s.handleUploadAsync).Methods("POST")
	api.HandleFunc("/file/status", s.handleFileStatus).Methods("GET")
	api.HandleFunc("/file/download/{kind}/async", s.handleDownloadAsync).Methods("POST")

	api.HandleFunc("/tasks/{id}", s.handleTaskStatus).Methods("GET")
	api.HandleFunc("/tasks/{id}/cancel", s.handleTaskCancel).Methods("POST")
	api.HandleFunc("/tasks/{id}/result", s.handleTaskResult).Methods("GET")
	api.HandleFunc("/tasks/{id}/stream", s.handleTaskStream).Methods("GET")

	api.HandleFunc("/algo/current", s.handleAlgoCurrent).Methods("GET")
	api.HandleFunc("/algo/defaults", s.handleAlgoDefaults).Methods("GET")
	api.HandleFunc("/algo/update", s.handleAlgoUpdate).Methods("POST")
	api.HandleFunc("/algo/create", s.handleAlgoCreate).Methods("POST")
	api.HandleFunc("/algo/set/{name}/activate", s.handleAlgoSetActivate).Methods("POST")
	api.HandleFunc("/algo/set/{name}", s.handleAlgoSetUpdate).Methods("PUT")
	api.HandleFunc("/algo/set/{name}", s.handleAlgoSetGet).Methods("GET")
	api.HandleFunc("/algo/sets/recent", s.handleAlgoSetsRecent).Methods("GET")

	api.HandleFunc("/run/noos/async", s.handleRunNoosAsync).Methods("POST")

	api.HandleFunc("/report/report1", s.handleReport1).Methods("GET")
	api.HandleFunc("/report/report2", s.handleReport2).Methods("GET")
	api.HandleFunc("/updates", s.handleUpdates).Methods("GET")

	api.HandleFunc("/data/clear-all", s.handleClearAll).Methods("DELETE")

	return r
}
