package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/glyphlab/woffle"
	"github.com/glyphlab/woffle/internal/model"
)

// maxBodySize bounds the subset request body (base64-encoded font plus
// codepoints), comfortably above any realistic webfont.
const maxBodySize = 48 << 20

// subsetRequest is the JSON body for POST /v1/subset. The font travels
// base64-encoded; the glyphs to keep come either as explicit codepoints or
// as a text sample whose unique runes are used.
type subsetRequest struct {
	Font       []byte  `json:"font"`
	CodePoints []int32 `json:"code_points"`
	Text       string  `json:"text"`
}

// subsetResponse pairs the resulting data-url with the recorded job.
type subsetResponse struct {
	DataURL string     `json:"data_url"`
	Job     *model.Job `json:"job"`
}

func (s *Server) handleSubset(w http.ResponseWriter, r *http.Request) {
	var req subsetRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if len(req.Font) == 0 {
		s.writeError(w, http.StatusBadRequest, "font is required")
		return
	}

	codePoints := make([]rune, 0, len(req.CodePoints))
	for _, cp := range req.CodePoints {
		codePoints = append(codePoints, rune(cp))
	}
	for _, ch := range req.Text {
		codePoints = append(codePoints, ch)
	}
	if len(codePoints) == 0 {
		s.writeError(w, http.StatusBadRequest, "code_points or text is required")
		return
	}

	start := time.Now()
	result := s.subsetter.SubsetFont(r.Context(), req.Font, codePoints)
	durationMS := int(time.Since(start).Milliseconds())

	status := model.StatusCompleted
	if result.Route == woffle.RouteOriginal {
		status = model.StatusDegraded
	}

	job := &model.Job{
		ID:          model.NewID(),
		Status:      status,
		Route:       result.Route,
		InputBytes:  len(req.Font),
		OutputBytes: decodedSize(result.DataURL),
		CodePoints:  len(codePoints),
		DurationMS:  durationMS,
		CreatedAt:   start.UTC(),
	}

	if err := s.store.CreateJob(r.Context(), job); err != nil {
		// History is best-effort bookkeeping; the subset result is still good.
		s.logger.Error("record job", "job_id", job.ID, "error", err)
	}

	s.writeJSON(w, http.StatusOK, subsetResponse{
		DataURL: result.DataURL,
		Job:     job,
	})
}

// decodedSize computes the binary size of a data-url payload without
// decoding it.
func decodedSize(dataURL string) int {
	b64 := strings.TrimPrefix(dataURL, woffle.DataURLPrefix)
	n := base64.StdEncoding.DecodedLen(len(b64))
	// DecodedLen assumes maximal padding; correct for actual '=' count.
	return n - strings.Count(b64[max(0, len(b64)-2):], "=")
}
