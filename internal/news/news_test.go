package news

import (
	"testing"
	"time"

	"github.com/deusflow/pilbarawatch/internal/classify"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func testProfile() *Profile {
	return &Profile{
		Category:         CategoryUnionActivity,
		Limit:            10,
		RegionalSuffix:   ".au",
		RequiredTerms:    []string{"union", "strike"},
		OffTopicTerms:    []string{"recipe", "celebrity"},
		BlockedDomains:   []string{"reddit", "youtube"},
		HighValueTerms:   []string{"pilbara", "bhp"},
		MediumValueTerms: []string{"workers"},
		Priority: classify.Ruleset{
			Rules: []classify.Rule{
				{Label: "high", Keywords: []string{"strike"}},
				{Label: "medium", Keywords: []string{"agreement"}},
			},
			Fallback: "low",
		},
	}
}

func TestIsAdmissible(t *testing.T) {
	p := testProfile()

	tests := []struct {
		name    string
		article Article
		want    bool
	}{
		{
			name:    "title exactly ten characters",
			article: Article{Title: "Pilbara Ok", Description: "union backs new deal", URL: "https://example.com/a"},
			want:    true,
		},
		{
			name:    "title nine characters",
			article: Article{Title: "Pilbara O", Description: "union backs new deal", URL: "https://example.com/a"},
			want:    false,
		},
		{
			name:    "description nineteen characters",
			article: Article{Title: "Pilbara Ok", Description: "union backs new dea", URL: "https://example.com/a"},
			want:    false,
		},
		{
			name:    "multibyte title counted in characters",
			article: Article{Title: "Pilbara Ök", Description: "union backs new deal", URL: "https://example.com/a"},
			want:    true,
		},
		{
			name:    "blocked domain",
			article: Article{Title: "Union news today", Description: "union backs new deal today", URL: "https://www.reddit.com/r/x"},
			want:    false,
		},
		{
			name:    "off topic term",
			article: Article{Title: "Union celebrity chef", Description: "union backs new recipe book", URL: "https://example.com/a"},
			want:    false,
		},
		{
			name:    "no required term",
			article: Article{Title: "Pilbara weather", Description: "hot days ahead for the region", URL: "https://example.com/a"},
			want:    false,
		},
		{
			name:    "required term case insensitive",
			article: Article{Title: "Port STRIKE looms", Description: "members vote this week on action", URL: "https://example.com/a"},
			want:    true,
		},
		{
			name:    "unparseable url is not blocked",
			article: Article{Title: "Union news today", Description: "union backs new deal today", URL: "://bad url"},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAdmissible(tt.article, p); got != tt.want {
				t.Errorf("IsAdmissible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreHighValueTitleTerm(t *testing.T) {
	p := testProfile()
	base := Article{
		Title:       "Pilbara workers rally",
		Description: "crowds gather",
		URL:         "https://example.com/a",
		PublishedAt: "2024-01-01T00:00:00Z",
	}
	more := base
	more.Title = "Pilbara BHP workers rally"

	if diff := Score(more, p, testNow) - Score(base, p, testNow); diff != 20 {
		t.Errorf("extra high-value title term changed score by %d, want 20", diff)
	}
}

func TestScoreComponents(t *testing.T) {
	p := testProfile()
	a := Article{
		Title:       "BHP workers meet",
		Description: "pilbara workers",
		URL:         "https://www.abc.net.au/news/1",
		PublishedAt: "2024-03-10T08:00:00Z",
	}
	// 20 (bhp title) + 8 (pilbara desc) + 10 (workers title) + 4 (workers desc) + 15 + 25
	if got := Score(a, p, testNow); got != 82 {
		t.Errorf("Score() = %d, want 82", got)
	}
}

func TestScoreRecency(t *testing.T) {
	p := testProfile()

	tests := []struct {
		published string
		want      int
	}{
		{"2024-03-10T08:00:00Z", 15},
		{"2024-03-09T12:00:00Z", 15},
		{"2024-03-08T13:00:00Z", 10},
		{"2024-03-08T14:24:00Z", 10},
		{"2024-03-07T12:00:00Z", 10},
		{"2024-03-07T11:00:00Z", 5},
		{"2024-03-06T14:24:00Z", 5},
		{"2024-03-04T12:00:00Z", 5},
		{"2024-03-03T12:00:00Z", 5},
		{"2024-03-02T14:24:00Z", 0},
		{"2024-02-09T12:00:00Z", 0},
		{"not a date", 0},
	}

	for _, tt := range tests {
		a := Article{Title: "nothing relevant", URL: "https://example.com", PublishedAt: tt.published}
		if got := Score(a, p, testNow); got != tt.want {
			t.Errorf("Score(published %s) = %d, want %d", tt.published, got, tt.want)
		}
	}
}

func TestScoreRecentBeatsOld(t *testing.T) {
	p := testProfile()
	today := Article{Title: "Pilbara strike", URL: "https://example.com", PublishedAt: "2024-03-10T09:00:00Z"}
	old := today
	old.PublishedAt = "2024-02-09T09:00:00Z"

	if diff := Score(today, p, testNow) - Score(old, p, testNow); diff != 15 {
		t.Errorf("today vs 30 days ago differs by %d, want 15", diff)
	}
}

func TestPriorityFor(t *testing.T) {
	p := testProfile()

	tests := []struct {
		text string
		want Priority
	}{
		{"Strike called over agreement", PriorityHigh},
		{"Agreement reached", PriorityMedium},
		{"Members meet", PriorityLow},
	}
	for _, tt := range tests {
		if got := PriorityFor(Article{Title: tt.text}, p); got != tt.want {
			t.Errorf("PriorityFor(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestAnnotate(t *testing.T) {
	p := testProfile()
	a := Article{Title: "Pilbara strike", Description: "workers out", URL: "https://example.com", PublishedAt: "2024-03-10T09:00:00Z"}

	got := Annotate(a, p, "q1", testNow)
	if got.Category != CategoryUnionActivity || got.Priority != PriorityHigh || got.SearchQuery != "q1" {
		t.Errorf("unexpected annotation %+v", got)
	}
	if got.RelevanceScore != Score(a, p, testNow) {
		t.Errorf("RelevanceScore = %d, want %d", got.RelevanceScore, Score(a, p, testNow))
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"BHP: Strike   Ends!", "bhp strike ends"},
		{"  Rio Tinto's   new deal  ", "rio tintos new deal"},
		{"Tab\tand\nnewline", "tab and newline"},
	}
	for _, tt := range tests {
		if got := NormalizeTitle(tt.in); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDedupe(t *testing.T) {
	in := []ScoredArticle{
		{Article: Article{Title: "Strike ends", URL: "https://a/1"}},
		{Article: Article{Title: "Other story", URL: "https://a/1"}},
		{Article: Article{Title: "STRIKE ends!", URL: "https://b/2"}},
		{Article: Article{Title: "Fresh story", URL: "https://c/3"}},
		{Article: Article{Title: "Strike ends", URL: "https://d/4"}},
	}

	got := Dedupe(in)
	wantURLs := []string{"https://a/1", "https://c/3"}
	if len(got) != len(wantURLs) {
		t.Fatalf("Dedupe() returned %d articles, want %d", len(got), len(wantURLs))
	}
	for i, u := range wantURLs {
		if got[i].URL != u {
			t.Errorf("got[%d].URL = %q, want %q", i, got[i].URL, u)
		}
	}

	urls := map[string]bool{}
	titles := map[string]bool{}
	for _, a := range got {
		if urls[a.URL] || titles[NormalizeTitle(a.Title)] {
			t.Errorf("duplicate survived: %+v", a)
		}
		urls[a.URL] = true
		titles[NormalizeTitle(a.Title)] = true
	}
}

func TestDedupeNoCrossCallState(t *testing.T) {
	in := []ScoredArticle{{Article: Article{Title: "Strike ends", URL: "https://a/1"}}}
	Dedupe(in)
	if got := Dedupe(in); len(got) != 1 {
		t.Errorf("second call returned %d, want 1", len(got))
	}
}

func TestSortByScoreStable(t *testing.T) {
	in := []ScoredArticle{
		{Article: Article{URL: "a"}, RelevanceScore: 10},
		{Article: Article{URL: "b"}, RelevanceScore: 30},
		{Article: Article{URL: "c"}, RelevanceScore: 10},
		{Article: Article{URL: "d"}, RelevanceScore: 30},
	}
	SortByScore(in)

	want := []string{"b", "d", "a", "c"}
	for i, u := range want {
		if in[i].URL != u {
			t.Errorf("position %d = %q, want %q", i, in[i].URL, u)
		}
	}
}

func TestParseTopic(t *testing.T) {
	if got, err := ParseTopic("Market"); err != nil || got != TopicMarket {
		t.Errorf("ParseTopic(Market) = %q, %v", got, err)
	}
	if _, err := ParseTopic("sport"); err == nil {
		t.Error("expected error for unknown topic")
	}
}
