package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/datenlord/datenlord_sdk_go/internal/dlapi"
	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs"
)

func (s *Server) handleStat(w http.ResponseWriter, r *http.Request) {
	var req dlapi.PathRequest
	p, ok := decodePath(w, r, &req, &req.Path)
	if !ok {
		return
	}
	st, err := s.backend.Stat(r.Context(), p)
	if err != nil {
		s.writeError(w, "stat", p, err)
		return
	}
	writeResult(w, st)
}

func (s *Server) handleReadDir(w http.ResponseWriter, r *http.Request) {
	var req dlapi.PathRequest
	p, ok := decodePath(w, r, &req, &req.Path)
	if !ok {
		return
	}
	entries, err := s.backend.ReadDir(r.Context(), p)
	if err != nil {
		s.writeError(w, "read_dir", p, err)
		return
	}
	if entries == nil {
		entries = []dlfs.DirEntry{}
	}
	writeResult(w, map[string]any{"entries": entries})
}

func (s *Server) handleMkdir(w http.ResponseWriter, r *http.Request) {
	var req dlapi.PathRequest
	p, ok := decodePath(w, r, &req, &req.Path)
	if !ok {
		return
	}
	if err := s.backend.Mkdir(r.Context(), p); err != nil {
		s.writeError(w, "mkdir", p, err)
		return
	}
	writeResult(w, true)
}

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	var req dlapi.PathRequest
	p, ok := decodePath(w, r, &req, &req.Path)
	if !ok {
		return
	}
	if err := s.backend.CreateFile(r.Context(), p); err != nil {
		s.writeError(w, "create_file", p, err)
		return
	}
	writeResult(w, true)
}

func (s *Server) handleWriteFile(w http.ResponseWriter, r *http.Request) {
	var req dlapi.WriteRequest
	p, ok := decodePath(w, r, &req, &req.Path)
	if !ok {
		return
	}
	data, err := dlapi.DecodePayload(dlapi.Payload{DataBase64: req.DataBase64, Checksum: req.Checksum})
	if err != nil {
		code := dlfs.CodeInvalidArgument
		if errors.Is(err, dlapi.ErrChecksumMismatch) {
			code = dlfs.CodeIO
		}
		s.writeError(w, "write_file", p, &dlfs.Error{Code: code, Message: err.Error()})
		return
	}
	if err := s.backend.WriteFile(r.Context(), p, data); err != nil {
		s.writeError(w, "write_file", p, err)
		return
	}
	s.metrics.BytesWritten.Add(int64(len(data)))
	writeResult(w, true)
}

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	var req dlapi.PathRequest
	p, ok := decodePath(w, r, &req, &req.Path)
	if !ok {
		return
	}
	data, err := s.backend.ReadFile(r.Context(), p)
	if err != nil {
		s.writeError(w, "read_file", p, err)
		return
	}
	s.metrics.BytesRead.Add(int64(len(data)))
	writeResult(w, dlapi.EncodePayload(data))
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req dlapi.RenameRequest
	src, ok := decodePath(w, r, &req, &req.Src)
	if !ok {
		return
	}
	dst, err := dlfs.CleanPath(req.Dest)
	if err != nil {
		s.writeError(w, "rename_path", req.Dest, err)
		return
	}
	if err := s.backend.Rename(r.Context(), src, dst); err != nil {
		s.writeError(w, "rename_path", src, err)
		return
	}
	writeResult(w, true)
}

func (s *Server) handleDeleteDir(w http.ResponseWriter, r *http.Request) {
	var req dlapi.DeleteDirRequest
	p, ok := decodePath(w, r, &req, &req.Path)
	if !ok {
		return
	}
	if err := s.backend.RemoveDir(r.Context(), p, req.Recursive); err != nil {
		s.writeError(w, "delete_dir", p, err)
		return
	}
	writeResult(w, true)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	var req dlapi.PathRequest
	p, ok := decodePath(w, r, &req, &req.Path)
	if !ok {
		return
	}
	if err := s.backend.RemoveFile(r.Context(), p); err != nil {
		s.writeError(w, "delete_file", p, err)
		return
	}
	writeResult(w, true)
}

func (s *Server) handleStatFs(w http.ResponseWriter, r *http.Request) {
	if !decode(w, r, &dlapi.StatFsRequest{}) {
		return
	}
	st, err := s.backend.StatFs(r.Context())
	if err != nil {
		s.writeError(w, "statfs", "", err)
		return
	}
	writeResult(w, st)
}

// decode reads a JSON request body into dst. It answers the request itself
// and returns false when the body is unusable.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed,
			dlapi.EncodeError(uint32(dlfs.CodeInvalidArgument), "method not allowed"))
		return false
	}
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest,
			dlapi.EncodeError(uint32(dlfs.CodeInvalidArgument), "invalid request body: "+err.Error()))
		return false
	}
	return true
}

// decodePath decodes the body and cleans the path field it names.
func decodePath(w http.ResponseWriter, r *http.Request, dst any, field *string) (string, bool) {
	if !decode(w, r, dst) {
		return "", false
	}
	p, err := dlfs.CleanPath(*field)
	if err != nil {
		code := dlfs.CodeOf(err)
		writeJSON(w, code.HTTPStatus(), dlapi.EncodeError(uint32(code), "invalid path"))
		return "", false
	}
	return p, true
}

func (s *Server) writeError(w http.ResponseWriter, op, p string, err error) {
	code := dlfs.CodeOf(err)
	msg := code.String()
	var fsErr *dlfs.Error
	if errors.As(err, &fsErr) && fsErr.Message != "" {
		msg = fsErr.Message
	}
	if code == dlfs.CodeInternal || code == dlfs.CodeIO {
		s.log.Error().Err(err).Str("op", op).Str("path", p).Msg("backend failure")
	}
	writeJSON(w, code.HTTPStatus(), dlapi.EncodeError(uint32(code), msg))
}

func writeResult(w http.ResponseWriter, v any) {
	body, err := dlapi.EncodeResult(v)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dlapi.EncodeError(uint32(dlfs.CodeInternal), err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body) //nolint:errcheck
}
