//go:build cgo
// +build cgo

// Command framesource is an optional development tool that replays a
// webcam or a recorded video file into a running scoopguard ingest
// server, simulating spec.md §6's Frame Source external interface.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/scoopguard/violation-pipeline/internal/framesource"
)

func main() {
	source := flag.String("source", "0", "camera device id (e.g. 0) or path to a video file")
	sessionID := flag.String("session", "dev-session", "session id to tag pushed frames with")
	ingestURL := flag.String("ingest-url", "http://localhost:8080/frames/analyze", "scoopguard ingest endpoint")
	fps := flag.Int("fps", 10, "frames per second to replay at")
	flag.Parse()

	vs := framesource.New()
	if deviceID, err := strconv.Atoi(*source); err == nil {
		if err := vs.OpenDevice(deviceID, 0, 0, *fps); err != nil {
			log.Fatalf("failed to open camera device %d: %v", deviceID, err)
		}
	} else if err := vs.OpenFile(*source); err != nil {
		log.Fatalf("failed to open video file %q: %v", *source, err)
	}
	defer vs.Close()

	width, height, actualFPS := vs.Resolution()
	log.Printf("frame source opened: %dx%d@%dfps, pushing to %s as session %q", width, height, actualFPS, *ingestURL, *sessionID)

	client := &http.Client{Timeout: 10 * time.Second}
	ticker := time.NewTicker(time.Second / time.Duration(*fps))
	defer ticker.Stop()

	var frameNumber int
	for range ticker.C {
		jpegBytes, _, _, ok, err := vs.Read()
		if err != nil {
			log.Printf("read error: %v", err)
			continue
		}
		if !ok {
			log.Println("frame source exhausted")
			return
		}

		frameNumber++
		if err := pushFrame(client, *ingestURL, *sessionID, frameNumber, jpegBytes); err != nil {
			log.Printf("push frame %d failed: %v", frameNumber, err)
		}
	}
}

func pushFrame(client *http.Client, ingestURL, sessionID string, frameNumber int, jpegBytes []byte) error {
	body := map[string]any{
		"frame_id":     fmt.Sprintf("%s-%d", sessionID, frameNumber),
		"session_id":   sessionID,
		"timestamp":    time.Now().UTC().Format(time.RFC3339Nano),
		"frame_data":   base64.StdEncoding.EncodeToString(jpegBytes),
		"frame_number": frameNumber,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := client.Post(ingestURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("ingest server returned status %d", resp.StatusCode)
	}
	return nil
}
