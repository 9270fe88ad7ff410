package api

import (
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	entries, err := os.ReadDir(s.opts.DataDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Error().Err(err).Str("dir", s.opts.DataDir).Msg("list data files")
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	for _, e := range entries {
		if e.Type().IsRegular() && isCSV(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, names)
}

// validFilename rejects anything that is not a plain file name in DataDir.
func validFilename(name string) bool {
	return name != "" &&
		name == filepath.Base(name) &&
		!strings.ContainsAny(name, `/\`) &&
		!strings.HasPrefix(name, ".")
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if !validFilename(name) {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	if !isCSV(name) {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	f, err := os.Open(filepath.Join(s.opts.DataDir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		s.log.Error().Err(err).Str("file", name).Msg("open data file")
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}
	defer f.Close()
	if st, err := f.Stat(); err != nil || !st.Mode().IsRegular() {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		s.log.Warn().Err(err).Str("file", name).Msg("streaming data file")
	}
}
