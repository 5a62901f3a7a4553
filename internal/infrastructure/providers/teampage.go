package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/adrata/buyergroup/internal/domain"
	"github.com/adrata/buyergroup/internal/provider"
)

// teamPagePaths are tried in order until one yields people.
var teamPagePaths = []string{"/team", "/about-us", "/about", "/company", "/people"}

// memberSelector matches the markup conventions commonly used for staff
// listings on company sites.
const memberSelector = ".team-member, .member, .person, .profile-card, li.team"

// TeamPage scrapes the company's own website for staff listings. It
// costs no credits, so it sits last in the discovery priority as the
// free fallback when the paid providers find nothing.
type TeamPage struct {
	client *http.Client
	scheme string

	mu    sync.Mutex
	cache map[string]provider.Profile
}

var _ provider.Client = (*TeamPage)(nil)

// NewTeamPage wires an HTTP client; a nil client gets a 20s timeout.
func NewTeamPage(client *http.Client) *TeamPage {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &TeamPage{
		client: client,
		scheme: "https",
		cache:  map[string]provider.Profile{},
	}
}

// Name identifies the client inside the registry.
func (t *TeamPage) Name() string {
	return "teampage"
}

// Enabled is always true; scraping needs no credential.
func (t *TeamPage) Enabled() bool {
	return true
}

// Cost is zero for every operation.
func (t *TeamPage) Cost(domain.Operation) int {
	return 0
}

// Search fetches well-known staff page paths on the company domain and
// extracts people from the first page that lists any.
func (t *TeamPage) Search(ctx context.Context, q provider.Query) ([]string, error) {
	if q.CanonicalDomain == "" {
		return nil, provider.ErrNoResult
	}

	for _, path := range teamPagePaths {
		pageURL := fmt.Sprintf("%s://%s%s", t.scheme, q.CanonicalDomain, path)
		doc, err := t.fetchDocument(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		profiles := extractMembers(doc, q.CompanyName, q.CanonicalDomain)
		if len(profiles) == 0 {
			continue
		}

		ids := make([]string, 0, len(profiles))
		t.mu.Lock()
		for _, profile := range profiles {
			t.cache[profile.ExternalSourceID] = profile
			ids = append(ids, profile.ExternalSourceID)
		}
		t.mu.Unlock()
		return ids, nil
	}

	return nil, provider.ErrNoResult
}

// Collect serves a person scraped during the preceding search.
func (t *TeamPage) Collect(_ context.Context, id string) (provider.Profile, error) {
	t.mu.Lock()
	profile, ok := t.cache[id]
	t.mu.Unlock()
	if !ok {
		return provider.Profile{}, provider.ErrNoResult
	}
	return profile, nil
}

// Enrich is unsupported; staff pages rarely expose direct contacts
// beyond what search already captured.
func (t *TeamPage) Enrich(context.Context, provider.EnrichRequest) (provider.ContactFields, error) {
	return provider.ContactFields{}, provider.ErrNoResult
}

func (t *TeamPage) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "BuyerGroupScan/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func extractMembers(doc *goquery.Document, companyName, companyDomain string) []provider.Profile {
	var profiles []provider.Profile
	seen := map[string]struct{}{}

	doc.Find(memberSelector).Each(func(_ int, card *goquery.Selection) {
		name := strings.TrimSpace(card.Find("h2, h3, h4, .name").First().Text())
		if name == "" {
			return
		}

		id := "teampage:" + companyDomain + "/" + slugify(name)
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}

		title := strings.TrimSpace(card.Find(".title, .role, .position, p").First().Text())

		profile := provider.Profile{
			ExternalSourceID: id,
			FullName:         name,
			Title:            title,
			CompanyName:      companyName,
		}
		if href, ok := card.Find("a[href^=\"mailto:\"]").First().Attr("href"); ok {
			if email := strings.TrimPrefix(href, "mailto:"); email != "" {
				profile.Emails = []string{email}
			}
		}
		if href, ok := card.Find("a[href*=\"linkedin.com\"]").First().Attr("href"); ok {
			profile.LinkedInURL = href
		}

		profiles = append(profiles, profile)
	})

	return profiles
}

func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
