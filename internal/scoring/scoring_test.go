package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/david/eu-grants-monitor/internal/models"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func bareProfile() models.BusinessProfile {
	return models.BusinessProfile{
		CompanyName:          "Acme",
		CompanySize:          models.SizeSmall,
		Country:              "DE",
		FundingRange:         models.FundingRange{Min: 50000, Max: 500000},
		ComplexityPreference: models.ComplexitySimple,
	}
}

func TestRelevance_CountryAndSizeBonus(t *testing.T) {
	g := models.Grant{
		EligibleCountries:   []string{"DE", "FR"},
		TargetOrganizations: []string{"SME"},
		FundingAmount:       100000,
	}
	got := Relevance(g, bareProfile(), DefaultMatching())
	// 10 country + 15 size + 30 funding in range
	if !approxEqual(got, 55) {
		t.Fatalf("expected 55, got %f", got)
	}

	g.EligibleCountries = []string{"FR"}
	got = Relevance(g, bareProfile(), DefaultMatching())
	if !approxEqual(got, 45) {
		t.Fatalf("expected 45 without country match, got %f", got)
	}
}

func TestRelevance_FundingTerm(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   float64
	}{
		{name: "within range", amount: 200000, want: 30},
		{name: "at min boundary", amount: 50000, want: 30},
		{name: "half of min", amount: 25000, want: 0.5 * 0.3 * 50},
		{name: "one and a half times max", amount: 750000, want: 0.5 * 0.3 * 50},
		{name: "beyond double max", amount: 5000000, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := models.Grant{FundingAmount: tt.amount}
			got := Relevance(g, bareProfile(), DefaultMatching())
			if !approxEqual(got, tt.want) {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestRelevance_NonPositiveMinDoesNotDivideByZero(t *testing.T) {
	p := bareProfile()
	p.FundingRange = models.FundingRange{Min: 0, Max: 0}
	g := models.Grant{FundingAmount: -10}
	got := Relevance(g, p, DefaultMatching())
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("expected finite score, got %f", got)
	}
	if got != 0 {
		t.Fatalf("expected 0, got %f", got)
	}
}

func TestRelevance_ExpertiseAndIndustryTerms(t *testing.T) {
	p := bareProfile()
	p.AIExpertise = []string{"machine_learning", "computer_vision"}
	p.Industries = []string{"healthcare", "retail"}
	g := models.Grant{
		Title:         "AI for Hospitals",
		Description:   "Support for healthcare providers",
		Keywords:      []string{"Machine Learning", "diagnosis"},
		FundingAmount: 100000,
	}
	got := Relevance(g, p, DefaultMatching())
	// expertise 1/2*0.4*100 = 20, industry 1/2*0.3*100 = 15, funding 30
	if !approxEqual(got, 65) {
		t.Fatalf("expected 65, got %f", got)
	}
}

func TestRelevance_CappedAt100(t *testing.T) {
	m := DefaultMatching()
	m.CountryBonus = 90
	g := models.Grant{EligibleCountries: []string{"DE"}, FundingAmount: 100000}
	if got := Relevance(g, bareProfile(), m); got != 100 {
		t.Fatalf("expected cap at 100, got %f", got)
	}
}

func TestRelevance_IsIdempotent(t *testing.T) {
	p := models.DefaultProfile()
	g := models.Grant{
		Title:               "Digital Innovation for Manufacturing SMEs",
		Description:         "Industry 4.0 and predictive maintenance",
		EligibleCountries:   []string{"DE"},
		TargetOrganizations: []string{"SME"},
		Keywords:            []string{"manufacturing", "iot"},
		FundingAmount:       150000,
	}
	first := Relevance(g, p, DefaultMatching())
	second := Relevance(g, p, DefaultMatching())
	if first != second {
		t.Fatalf("expected identical results, got %f and %f", first, second)
	}
	if first < 0 || first > 100 {
		t.Fatalf("relevance out of range: %f", first)
	}
}

func TestComplexity(t *testing.T) {
	tests := []struct {
		name  string
		grant models.Grant
		want  float64
		level models.ComplexityLevel
	}{
		{name: "small grant", grant: models.Grant{FundingAmount: 50000}, want: 30, level: models.ComplexityMedium},
		{name: "over 100k", grant: models.Grant{FundingAmount: 150000}, want: 40, level: models.ComplexityMedium},
		{name: "over 500k", grant: models.Grant{FundingAmount: 600000}, want: 50, level: models.ComplexityMedium},
		{name: "over 1M without keywords", grant: models.Grant{FundingAmount: 1200000, Title: "Scale-up support"}, want: 60, level: models.ComplexityMedium},
		{
			name:  "single keyword bonus even with several matches",
			grant: models.Grant{FundingAmount: 1200000, Title: "Research consortium", Description: "multi-partner PhD network"},
			want:  75,
			level: models.ComplexityComplex,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Complexity(tt.grant)
			if got != tt.want {
				t.Fatalf("expected %f, got %f", tt.want, got)
			}
			if lvl := models.LevelForScore(got); lvl != tt.level {
				t.Fatalf("expected level %s, got %s", tt.level, lvl)
			}
		})
	}
}

func TestComplexity_MonotonicInAmount(t *testing.T) {
	prev := -1.0
	for _, amount := range []float64{0, 100000, 100001, 500000, 500001, 1000000, 1000001, 9e9} {
		got := Complexity(models.Grant{FundingAmount: amount, Description: "research"})
		if got < prev {
			t.Fatalf("complexity decreased at amount %f: %f < %f", amount, got, prev)
		}
		if got < 0 || got > 100 {
			t.Fatalf("complexity out of range at %f: %f", amount, got)
		}
		prev = got
	}
}

func TestPriority_Formula(t *testing.T) {
	g := models.Grant{
		RelevanceScore:  80,
		ComplexityScore: 40,
		FundingAmount:   250000,
		Deadline:        models.DateAfter(testNow, 73),
	}
	got := Priority(g, DefaultWeights(), testNow)
	want := 100 * (0.8*0.4 + 0.6*0.3 + 0.25*0.2 + (73.0/365)*0.1)
	if !approxEqual(got, want) {
		t.Fatalf("expected %f, got %f", want, got)
	}
}

func TestPriority_ExpiredGrantIsPenalizedNotFloored(t *testing.T) {
	g := models.Grant{
		RelevanceScore:  0,
		ComplexityScore: 100,
		FundingAmount:   0,
		Deadline:        models.DateAfter(testNow, -5),
	}
	got := Priority(g, DefaultWeights(), testNow)
	want := 100 * (-5.0 / 365) * 0.1
	if !approxEqual(got, want) {
		t.Fatalf("expected %f, got %f", want, got)
	}
	if got >= 0 {
		t.Fatalf("expected negative priority for expired grant, got %f", got)
	}
}

func TestPriority_Monotonicity(t *testing.T) {
	base := models.Grant{
		RelevanceScore:  50,
		ComplexityScore: 50,
		FundingAmount:   200000,
		Deadline:        models.DateAfter(testNow, 60),
	}
	w := DefaultWeights()
	p0 := Priority(base, w, testNow)

	moreRelevant := base
	moreRelevant.RelevanceScore = 60
	if Priority(moreRelevant, w, testNow) < p0 {
		t.Fatal("priority should not decrease with relevance")
	}

	moreComplex := base
	moreComplex.ComplexityScore = 60
	if Priority(moreComplex, w, testNow) > p0 {
		t.Fatal("priority should not increase with complexity")
	}

	bigger := base
	bigger.FundingAmount = 900000
	if Priority(bigger, w, testNow) < p0 {
		t.Fatal("priority should not decrease with amount")
	}

	capped := base
	capped.FundingAmount = 1000000
	capped2 := base
	capped2.FundingAmount = 5000000
	if !approxEqual(Priority(capped, w, testNow), Priority(capped2, w, testNow)) {
		t.Fatal("amount contribution should be capped at one million")
	}
}

func TestScoreGrantsThenSortByPriority(t *testing.T) {
	grants := []models.Grant{
		{ID: "a", FundingAmount: 20000, Deadline: models.DateAfter(testNow, 10)},
		{ID: "b", FundingAmount: 300000, Deadline: models.DateAfter(testNow, 90), EligibleCountries: []string{"DE"}, TargetOrganizations: []string{"SME"}},
		{ID: "c", FundingAmount: 3000000, Deadline: models.DateAfter(testNow, 200), Description: "research consortium"},
	}
	ScoreGrants(grants, models.DefaultProfile(), DefaultMatching(), DefaultWeights(), testNow)

	if grants[0].ID != "a" || grants[2].ID != "c" {
		t.Fatal("ScoreGrants must not reorder grants")
	}
	for _, g := range grants {
		if g.ComplexityScore == 0 {
			t.Fatalf("grant %s was not scored", g.ID)
		}
	}

	SortByPriority(grants)
	for i := 1; i < len(grants); i++ {
		if grants[i].PriorityScore > grants[i-1].PriorityScore {
			t.Fatalf("priorities not non-increasing at %d: %f > %f", i, grants[i].PriorityScore, grants[i-1].PriorityScore)
		}
	}
}

func TestSortByPriority_IsStable(t *testing.T) {
	grants := []models.Grant{
		{ID: "first", PriorityScore: 50},
		{ID: "top", PriorityScore: 90},
		{ID: "second", PriorityScore: 50},
		{ID: "third", PriorityScore: 50},
	}
	SortByPriority(grants)
	order := []string{"top", "first", "second", "third"}
	for i, id := range order {
		if grants[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, grants[i].ID)
		}
	}
}
