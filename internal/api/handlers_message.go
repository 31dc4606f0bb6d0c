package api

import "net/http"

const helloMessage = "Hello from Express backend!"

type MessageResponse struct {
	Message string `json:"message"`
}

// Message returns the static greeting.
func Message(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: helloMessage})
}
