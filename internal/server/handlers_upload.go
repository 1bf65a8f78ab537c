package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse upload")
		s.logger.Error("parse upload", slog.String("error", err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file not found in request")
		return
	}
	defer file.Close()

	safeName := filepath.Base(header.Filename)
	uniqueName := fmt.Sprintf("%s-%s", uuid.NewString(), safeName)
	destPath := filepath.Join(s.cfg.UploadDir, uniqueName)
	out, err := os.Create(destPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "unable to save file")
		s.logger.Error("create file", slog.String("error", err.Error()))
		return
	}
	defer out.Close()

	written, err := io.Copy(out, file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "unable to write file")
		s.logger.Error("write file", slog.String("error", err.Error()))
		return
	}

	asset := Asset{
		ID:          uuid.NewString(),
		OwnerID:     ident.ID,
		Filename:    safeName,
		URL:         "/uploads/" + uniqueName,
		ContentType: header.Header.Get("Content-Type"),
		Size:        written,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.createAsset(r.Context(), asset); err != nil {
		_ = os.Remove(destPath)
		s.logger.Error("create asset", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to record upload")
		return
	}

	writeJSON(w, http.StatusCreated, asset)
}

func (s *Server) handleAssetList(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	assets, err := s.listAssets(r.Context(), ident.ID)
	if err != nil {
		s.logger.Error("list assets", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list assets")
		return
	}
	writeJSON(w, http.StatusOK, assets)
}
