// Package schemes recommends the single best-matching government
// agricultural scheme for a crop and state, combining rule-based scoring
// with TF-IDF similarity over the scheme corpus.
package schemes

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"krishi-assistant/internal/common/logger"
	"krishi-assistant/internal/sellers"
)

// Scheme is one government scheme record.
type Scheme struct {
	Name          string `json:"scheme_name"`
	StateMinistry string `json:"state_ministry"`
	Description   string `json:"description"`
	Tags          string `json:"tags"`
	Link          string `json:"scheme_link"`
	combinedText  string
}

// Recommendation is the highest-scoring scheme with its final score.
type Recommendation struct {
	Scheme
	Score float64 `json:"score"`
}

// Engine scores schemes for crop/state queries. Immutable after
// construction and safe for concurrent use.
type Engine struct {
	schemes  []Scheme
	keywords []string
	vec      *sellers.Vectorizer
	matrix   [][]float64
	logger   logger.Logger
}

// NewEngine loads the scheme CSV, derives the 50 most frequent tags as
// boost keywords and fits the TF-IDF model over each scheme's combined
// text.
func NewEngine(csvPath string, log logger.Logger) (*Engine, error) {
	log = log.With(map[string]interface{}{"component": "schemes"})

	rows, err := sellers.LoadCSV(csvPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("scheme file not found, starting with empty corpus", map[string]interface{}{
				"path": csvPath,
			})
			return &Engine{vec: sellers.NewVectorizer(), logger: log}, nil
		}
		return nil, fmt.Errorf("load schemes from %s: %w", csvPath, err)
	}

	list := make([]Scheme, 0, len(rows))
	corpus := make([]string, 0, len(rows))
	for _, row := range rows {
		s := Scheme{
			Name:          row["scheme_name"],
			StateMinistry: row["state_ministry"],
			Description:   row["description"],
			Tags:          row["tags"],
			Link:          row["scheme_link"],
			combinedText:  row["combined_text"],
		}
		if s.combinedText == "" {
			s.combinedText = strings.Join([]string{s.Name, s.StateMinistry, s.Description, s.Tags}, " ")
		}
		list = append(list, s)
		corpus = append(corpus, s.combinedText)
	}

	vec := sellers.NewVectorizer()
	vec.Fit(corpus)
	matrix := make([][]float64, len(corpus))
	for i, text := range corpus {
		matrix[i] = vec.Transform(text)
	}

	eng := &Engine{
		schemes:  list,
		keywords: frequentTags(list, 50),
		vec:      vec,
		matrix:   matrix,
		logger:   log,
	}
	log.Info("scheme corpus loaded", map[string]interface{}{
		"schemes":  len(list),
		"keywords": len(eng.keywords),
	})
	return eng, nil
}

// Rule weights. State fit dominates, crop mentions rank within a state,
// keyword and similarity terms break ties.
const (
	stateMatchBonus  = 10000
	centralBonus     = 3000
	stateMismatch    = -8000
	cropInNameBonus  = 500
	cropInTagsBonus  = 300
	cropInDescBonus  = 150
	keywordBonus     = 5
	similarityFactor = 100
)

// Recommend returns the single best scheme for the crop and state, or
// false when the corpus is empty.
func (e *Engine) Recommend(crop, state string) (Recommendation, bool) {
	if len(e.schemes) == 0 {
		return Recommendation{}, false
	}

	crop = strings.ToLower(strings.TrimSpace(crop))
	state = strings.ToLower(strings.TrimSpace(state))

	query := fmt.Sprintf("%s farmer in %s looking for schemes", crop, state)
	qv := e.vec.Transform(query)

	bestIdx, bestScore := 0, score(e.schemes[0], crop, state, e.keywords, qv, e.matrix[0])
	for i := 1; i < len(e.schemes); i++ {
		if sc := score(e.schemes[i], crop, state, e.keywords, qv, e.matrix[i]); sc > bestScore {
			bestIdx, bestScore = i, sc
		}
	}

	return Recommendation{Scheme: e.schemes[bestIdx], Score: bestScore}, true
}

// Len reports the number of schemes in the corpus.
func (e *Engine) Len() int { return len(e.schemes) }

func score(s Scheme, crop, state string, keywords []string, qv, docVec []float64) float64 {
	name := strings.ToLower(s.Name)
	tags := strings.ToLower(s.Tags)
	desc := strings.ToLower(s.Description)
	ministry := strings.ToLower(s.StateMinistry)

	var sc float64

	switch {
	case state != "" && strings.Contains(ministry, state):
		sc += stateMatchBonus
	case strings.Contains(ministry, "ministry of") || strings.Contains(ministry, "government of india"):
		sc += centralBonus
	default:
		sc += stateMismatch
	}

	if crop != "" {
		if wordIn(name, crop) {
			sc += cropInNameBonus
		}
		if wordIn(tags, crop) {
			sc += cropInTagsBonus
		}
		if wordIn(desc, crop) {
			sc += cropInDescBonus
		}
	}

	for _, key := range keywords {
		if wordIn(tags, key) || wordIn(desc, key) {
			sc += keywordBonus
		}
	}

	sc += sellers.Dot(qv, docVec) * similarityFactor
	return sc
}

// wordIn reports whether word occurs in text as a whole word.
func wordIn(text, word string) bool {
	pattern := `\b` + regexp.QuoteMeta(word) + `\b`
	matched, err := regexp.MatchString(pattern, text)
	return err == nil && matched
}

// frequentTags returns the n most common comma-separated tags across the
// corpus, most frequent first.
func frequentTags(schemes []Scheme, n int) []string {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, s := range schemes {
		for _, t := range strings.Split(s.Tags, ",") {
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" {
				continue
			}
			if _, seen := counts[t]; !seen {
				order = append(order, t)
			}
			counts[t]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}
