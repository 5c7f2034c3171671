package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"
)

// Fake whisper-server endpoint for manual end-to-end testing of the
// transcribe command. Returns a canned verbose_json response with
// word-level timings for any uploaded WAV file.

type wordTiming struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability"`
}

type recognitionResponse struct {
	Text  string       `json:"text"`
	Model string       `json:"model,omitempty"`
	Words []wordTiming `json:"words,omitempty"`
}

func inferenceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	requestID := r.FormValue("request_id")
	model := r.FormValue("model")
	language := r.FormValue("language")

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	log.Printf("Recognition request: id=%s file=%s size=%d model=%s language=%s",
		requestID, header.Filename, len(audioData), model, language)

	// Simulate inference latency
	time.Sleep(200 * time.Millisecond)

	if model == "" {
		model = "whisper-large-v3"
	}
	response := recognitionResponse{
		Text:  "this is a test transcription of the uploaded audio",
		Model: model,
		Words: []wordTiming{
			{Word: "this", Start: 0.0, End: 0.3, Probability: 0.98},
			{Word: " is", Start: 0.3, End: 0.5, Probability: 0.97},
			{Word: " a", Start: 0.5, End: 0.6, Probability: 0.99},
			{Word: " test", Start: 0.6, End: 1.0, Probability: 0.96},
			{Word: " transcription", Start: 1.0, End: 1.8, Probability: 0.95},
			{Word: " of", Start: 1.8, End: 2.0, Probability: 0.98},
			{Word: " the", Start: 2.0, End: 2.2, Probability: 0.99},
			{Word: " uploaded", Start: 2.2, End: 2.8, Probability: 0.94},
			{Word: " audio", Start: 2.8, End: 3.3, Probability: 0.97},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("Recognition response sent: %q", response.Text)
}

func main() {
	http.HandleFunc("/inference", inferenceHandler)

	addr := ":8033"
	log.Printf("Fake recognition server listening on %s", addr)
	log.Printf("Point transcription.endpoint at http://localhost%s/inference", addr)

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
