package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// UpdateError is a firmware upload failure. It aborts only the one upload;
// the device stays reachable for a retry and never reboots on failure.
type UpdateError struct {
	Stage string
	Err   error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("update: %s: %v", e.Stage, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }

// updateState is the arm-then-upload handshake. Arming declares the image
// size and digest; the next upload must match both.
type updateState struct {
	mu     sync.Mutex
	armed  bool
	size   int64
	sha256 string
}

type armRequest struct {
	Size   int64  `json:"size"`
	Sha256 string `json:"sha256"`
}

// handleUpdateArm declares the upcoming image. The device will reject an
// upload without a matching arm, so a stray POST can never flash anything.
func (s *Server) handleUpdateArm(w http.ResponseWriter, r *http.Request) {
	var req armRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_json", err.Error())
		return
	}
	if req.Size <= 0 || req.Size > s.cfg.Update.MaxImageMB*1024*1024 {
		writeError(w, http.StatusBadRequest, "invalid_image_size",
			fmt.Sprintf("image size must be in (0, %dMB]", s.cfg.Update.MaxImageMB))
		return
	}
	digest := strings.ToLower(strings.TrimSpace(req.Sha256))
	if len(digest) != sha256.Size*2 {
		writeError(w, http.StatusBadRequest, "invalid_digest", "sha256 must be 64 hex characters")
		return
	}
	if _, err := hex.DecodeString(digest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_digest", "sha256 must be 64 hex characters")
		return
	}

	s.update.mu.Lock()
	s.update.armed = true
	s.update.size = req.Size
	s.update.sha256 = digest
	s.update.mu.Unlock()

	s.logger.WithField("size", req.Size).Info("Firmware update armed")
	writeJSON(w, http.StatusOK, map[string]string{"status": "armed"})
}

// handleUpdate streams the image to the staging file while hashing it, and
// only reports success once the digest matches the armed one. Progress is
// rendered on the panel because the uploading browser may drop off the
// network mid-flash.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.update.mu.Lock()
	if !s.update.armed {
		s.update.mu.Unlock()
		writeError(w, http.StatusConflict, "not_armed", "arm the update before uploading")
		return
	}
	expectedSize := s.update.size
	expectedDigest := s.update.sha256
	s.update.armed = false
	s.update.mu.Unlock()

	s.orch.BeginUpdate()
	if err := s.receiveImage(r, expectedSize, expectedDigest); err != nil {
		s.logger.WithError(err).Error("Firmware update failed")
		s.orch.EndUpdate(true)
		writeError(w, http.StatusBadRequest, "update_failed", err.Error())
		return
	}
	s.orch.EndUpdate(false)

	s.logger.WithField("path", s.cfg.Update.StagingPath).Info("Firmware image staged")
	writeJSON(w, http.StatusOK, map[string]string{"status": "staged"})
}

func (s *Server) receiveImage(r *http.Request, expectedSize int64, expectedDigest string) error {
	staging := s.cfg.Update.StagingPath
	if err := os.MkdirAll(filepath.Dir(staging), 0o755); err != nil {
		return &UpdateError{Stage: "staging", Err: err}
	}
	f, err := os.Create(staging)
	if err != nil {
		return &UpdateError{Stage: "staging", Err: err}
	}
	defer f.Close()

	hasher := sha256.New()
	body := io.LimitReader(r.Body, expectedSize+1)
	buf := make([]byte, 64*1024)
	var received int64
	lastPercent := -1

	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return s.abortUpload(staging, &UpdateError{Stage: "write", Err: werr})
			}
			hasher.Write(buf[:n])
			received += int64(n)

			percent := int(received * 100 / expectedSize)
			if percent > 100 {
				percent = 100
			}
			// redrawing an e-paper panel per chunk would swamp the upload
			if percent/10 > lastPercent/10 {
				lastPercent = percent
				s.orch.ReportUpdateProgress(percent)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return s.abortUpload(staging, &UpdateError{Stage: "read", Err: rerr})
		}
	}

	if received != expectedSize {
		return s.abortUpload(staging, &UpdateError{
			Stage: "verify",
			Err:   fmt.Errorf("received %d bytes, armed for %d", received, expectedSize),
		})
	}
	if digest := hex.EncodeToString(hasher.Sum(nil)); digest != expectedDigest {
		return s.abortUpload(staging, &UpdateError{
			Stage: "verify",
			Err:   fmt.Errorf("sha256 mismatch"),
		})
	}
	if err := f.Sync(); err != nil {
		return s.abortUpload(staging, &UpdateError{Stage: "sync", Err: err})
	}
	return nil
}

// abortUpload removes the partial staging file so a failed attempt can never
// be flashed.
func (s *Server) abortUpload(staging string, uerr *UpdateError) error {
	if err := os.Remove(staging); err != nil && !os.IsNotExist(err) {
		s.logger.WithError(err).Warn("Removing partial update image failed")
	}
	return uerr
}
