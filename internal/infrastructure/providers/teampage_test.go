package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/adrata/buyergroup/internal/provider"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"Jane Roe", "jane-roe"},
		{"  Dr. J. Roe ", "dr-j-roe"},
		{"Åsa Löfgren", "åsa-löfgren"},
		{"O'Brien, Pat", "obrien-pat"},
	}
	for _, tc := range cases {
		if got := slugify(tc.in); got != tc.want {
			t.Fatalf("slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractMembers(t *testing.T) {
	t.Parallel()

	html := `
	<div class="team">
	  <div class="team-member">
	    <h3>Jane Roe</h3>
	    <p class="title">Chief Executive Officer</p>
	    <a href="mailto:jane@acme.com">email</a>
	    <a href="https://linkedin.com/in/janeroe">profile</a>
	  </div>
	  <div class="team-member">
	    <h3>John Doe</h3>
	    <p class="role">VP Engineering</p>
	  </div>
	  <div class="team-member">
	    <img src="nobody.png">
	  </div>
	</div>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	profiles := extractMembers(doc, "Acme", "acme.com")
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}

	if profiles[0].ExternalSourceID != "teampage:acme.com/jane-roe" {
		t.Fatalf("unexpected id: %s", profiles[0].ExternalSourceID)
	}
	if profiles[0].Title != "Chief Executive Officer" {
		t.Fatalf("unexpected title: %s", profiles[0].Title)
	}
	if len(profiles[0].Emails) != 1 || profiles[0].Emails[0] != "jane@acme.com" {
		t.Fatalf("unexpected emails: %v", profiles[0].Emails)
	}
	if profiles[0].LinkedInURL != "https://linkedin.com/in/janeroe" {
		t.Fatalf("unexpected linkedin url: %s", profiles[0].LinkedInURL)
	}
	if profiles[1].Title != "VP Engineering" {
		t.Fatalf("unexpected title: %s", profiles[1].Title)
	}
}

func TestTeamPageSearchAndCollect(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/team" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`
		<div class="team-member">
		  <h3>Jane Roe</h3>
		  <p class="title">CEO</p>
		</div>
		<div class="team-member">
		  <h3>Jane Roe</h3>
		  <p class="title">CEO</p>
		</div>`))
	}))
	defer server.Close()

	tp := NewTeamPage(server.Client())
	tp.scheme = "http"

	domainHost := strings.TrimPrefix(server.URL, "http://")
	ids, err := tp.Search(context.Background(), provider.Query{
		CompanyName:     "Acme",
		CanonicalDomain: domainHost,
	})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 deduplicated id, got %d", len(ids))
	}

	profile, err := tp.Collect(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if profile.FullName != "Jane Roe" || profile.Title != "CEO" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	if _, err := tp.Collect(context.Background(), "teampage:unknown"); err != provider.ErrNoResult {
		t.Fatalf("expected ErrNoResult for unknown id, got %v", err)
	}
}

func TestTeamPageSearchNoPages(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	tp := NewTeamPage(server.Client())
	tp.scheme = "http"

	_, err := tp.Search(context.Background(), provider.Query{
		CompanyName:     "Acme",
		CanonicalDomain: strings.TrimPrefix(server.URL, "http://"),
	})
	if err != provider.ErrNoResult {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
}
