package api

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/xaenox/gift-bot/internal/classifier"
	"github.com/xaenox/gift-bot/internal/models"
)

// Messages shown to API clients.
const (
	MsgUploadOK        = "파일 업로드 성공"
	MsgAnalyzeOK       = "분석 완료"
	MsgRecommendOK     = "추천 완료"
	ErrMsgNoFile       = "파일이 없습니다."
	ErrMsgFileNotFound = "해당 파일을 찾을 수 없습니다."
	ErrMsgUnreadable   = "대화 파일을 읽을 수 없습니다."
	ErrMsgStorage      = "파일을 저장할 수 없습니다."
)

// maximum keywords reported per date-group
const reportedKeywords = 5

// Envelope is the body of every /api response. Failures are reported with
// success=false and HTTP 200.
type Envelope struct {
	Success bool    `json:"success"`
	Data    any     `json:"data"`
	Message *string `json:"message"`
	Error   *string `json:"error"`
}

type uploadData struct {
	FileID string `json:"fileId"`
}

// fileRequest names an upload. Budget, when set, limits recommendations
// to items priced at or below it.
type fileRequest struct {
	FileID string `json:"fileId"`
	Budget *int64 `json:"budget,omitempty"`
}

type keywordView struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type analysisView struct {
	Date     string        `json:"date"`
	Subject  string        `json:"subject"`
	Category string        `json:"category"`
	Intimacy float64       `json:"intimacy"`
	Keywords []keywordView `json:"keywords"`
	Error    *string       `json:"error,omitempty"`
}

type recommendationView struct {
	Date            string            `json:"date"`
	Recommendations []models.GiftItem `json:"recommendations"`
	Error           *string           `json:"error,omitempty"`
}

func errorText(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}

func newAnalysisView(a models.GroupAnalysis) analysisView {
	n := min(len(a.Keywords), reportedKeywords)
	kws := make([]keywordView, 0, n)
	for _, k := range a.Keywords[:n] {
		kws = append(kws, keywordView{Name: k.Name, Score: classifier.Round2(k.Score)})
	}
	return analysisView{
		Date:     a.Date,
		Subject:  a.Subject,
		Category: a.Category,
		Intimacy: a.Intimacy,
		Keywords: kws,
		Error:    errorText(a.Err),
	}
}

func newRecommendationView(r models.GroupRecommendation) recommendationView {
	items := r.Items
	if items == nil {
		items = []models.GiftItem{}
	}
	return recommendationView{
		Date:            r.Analysis.Date,
		Recommendations: items,
		Error:           errorText(r.Analysis.Err),
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		s.logger.Error("Failed to marshal JSON response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func (s *Server) respondOK(w http.ResponseWriter, data any, message string) {
	s.respondJSON(w, http.StatusOK, &Envelope{Success: true, Data: data, Message: &message})
}

func (s *Server) respondFailure(w http.ResponseWriter, message string) {
	s.respondJSON(w, http.StatusOK, &Envelope{Success: false, Error: &message})
}

// parsePrice reads the digits of a catalog price such as "12,900원".
func parsePrice(price string) (int64, bool) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, price)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	return n, err == nil
}

// withinBudget keeps the items whose price is known and at most budget,
// most expensive first.
func withinBudget(items []models.GiftItem, budget int64) []models.GiftItem {
	type priced struct {
		item  models.GiftItem
		price int64
	}
	var kept []priced
	for _, it := range items {
		if p, ok := parsePrice(it.Price); ok && p <= budget {
			kept = append(kept, priced{it, p})
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].price > kept[j].price })

	out := make([]models.GiftItem, len(kept))
	for i, k := range kept {
		out[i] = k.item
	}
	return out
}
