// Package sellers recommends farmer producer companies (FPCs) for a crop
// and region using TF-IDF similarity over a CSV directory of sellers.
package sellers

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"

	"krishi-assistant/internal/common/logger"
)

// Seller is one row of the FPC directory.
type Seller struct {
	ID           string  `json:"-"`
	FPCName      string  `json:"FPC_Name"`
	District     string  `json:"District"`
	Commodities  string  `json:"Commodities"`
	Email        string  `json:"Email"`
	Address      string  `json:"-"`
	ContactPhone string  `json:"Contact_Phone"`
	MatchScore   float64 `json:"match_score"`
}

// Matcher ranks sellers against a crop/region query. It is immutable after
// construction and safe for concurrent use.
type Matcher struct {
	sellers []Seller
	vec     *Vectorizer
	matrix  [][]float64
	logger  logger.Logger
}

var sellerIDPattern = regexp.MustCompile(`[^a-zA-Z0-9]`)

// NewMatcher loads the seller CSV and fits the TF-IDF model over the
// combined name, district, commodities and address text of each seller. A
// missing file yields an empty matcher rather than an error so the rest of
// the service can still start.
func NewMatcher(csvPath string, log logger.Logger) (*Matcher, error) {
	log = log.With(map[string]interface{}{"component": "sellers"})

	rows, err := LoadCSV(csvPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("seller file not found, starting with empty directory", map[string]interface{}{
				"path": csvPath,
			})
			return &Matcher{vec: NewVectorizer(), logger: log}, nil
		}
		return nil, fmt.Errorf("load sellers from %s: %w", csvPath, err)
	}

	list := make([]Seller, 0, len(rows))
	corpus := make([]string, 0, len(rows))
	for _, row := range rows {
		s := Seller{
			FPCName:      row["FPC_Name"],
			District:     row["District"],
			Commodities:  row["Commodities"],
			Email:        row["Email"],
			Address:      row["Address"],
			ContactPhone: row["Contact_Phone"],
		}
		s.ID = sellerIDPattern.ReplaceAllString(s.FPCName, "")
		list = append(list, s)
		corpus = append(corpus, strings.Join([]string{s.FPCName, s.District, s.Commodities, s.Address}, " "))
	}

	vec := NewVectorizer()
	vec.Fit(corpus)
	matrix := make([][]float64, len(corpus))
	for i, text := range corpus {
		matrix[i] = vec.Transform(text)
	}

	log.Info("seller directory loaded", map[string]interface{}{
		"sellers": len(list),
		"terms":   vec.dimension,
	})
	return &Matcher{sellers: list, vec: vec, matrix: matrix, logger: log}, nil
}

// Recommend returns up to 15 sellers ranked by TF-IDF similarity against
// "<crop> <region>", scored 0..100. A blank query returns the first 10
// sellers unranked, matching a directory-browse request.
func (m *Matcher) Recommend(crop, region string) []Seller {
	query := strings.TrimSpace(strings.TrimSpace(crop) + " " + strings.TrimSpace(region))

	if query == "" {
		n := len(m.sellers)
		if n > 10 {
			n = 10
		}
		out := make([]Seller, n)
		copy(out, m.sellers[:n])
		return out
	}

	qv := m.vec.Transform(query)
	out := make([]Seller, len(m.sellers))
	copy(out, m.sellers)
	for i := range out {
		out[i].MatchScore = math.Round(Dot(qv, m.matrix[i])*100*100) / 100
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MatchScore > out[j].MatchScore
	})
	if len(out) > 15 {
		out = out[:15]
	}
	return out
}

// Len reports the number of sellers in the directory.
func (m *Matcher) Len() int { return len(m.sellers) }

// LoadCSV reads the file into one map per row keyed by normalized header
// names (spaces collapsed to underscores).
func LoadCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.ReplaceAll(strings.TrimSpace(h), " ", "_")
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
