package roster

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/connect-cli/internal/ingest"
	"github.com/sells-group/connect-cli/internal/match"
	"github.com/sells-group/connect-cli/internal/model"
)

// Seed is a demo fixture: one organization's roster plus cards to review.
type Seed struct {
	OrganizationID string         `yaml:"organization_id"`
	Members        []model.Member `yaml:"members"`
	Leaders        []SeedLeader   `yaml:"leaders"`
	Cards          []SeedCard     `yaml:"cards"`
}

// SeedLeader accepts categories as labels or enum values.
type SeedLeader struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Categories []string `yaml:"categories"`
}

// SeedCard is an extracted payload plus its image keys. Card fields go
// through the same validation as live extraction output.
type SeedCard struct {
	BatchID       string   `yaml:"batch_id" json:"-"`
	FrontImageKey string   `yaml:"front_image_key" json:"-"`
	BackImageKey  string   `yaml:"back_image_key" json:"-"`
	Name          *string  `yaml:"name" json:"name"`
	Email         *string  `yaml:"email" json:"email"`
	Phone         *string  `yaml:"phone" json:"phone"`
	PrayerRequest *string  `yaml:"prayer_request" json:"prayer_request"`
	VisitStatus   *string  `yaml:"visit_status" json:"visit_status"`
	Interests     []string `yaml:"interests" json:"interests"`
	Keywords      []string `yaml:"keywords" json:"keywords"`
}

// LoadSeed parses a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "roster: read seed")
	}
	return ParseSeed(data)
}

// ParseSeed parses YAML seed data.
func ParseSeed(data []byte) (*Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "roster: parse seed")
	}
	if s.OrganizationID == "" {
		return nil, eris.New("roster: seed has no organization_id")
	}
	return &s, nil
}

// Target is what a seed is written into.
type Target interface {
	UpsertMembers(ctx context.Context, members []model.Member) (int64, error)
	UpsertLeaders(ctx context.Context, leaders []model.Leader) (int64, error)
	ingest.Inserter
}

// SeedResult counts what Apply wrote.
type SeedResult struct {
	Members int64
	Leaders int64
	Cards   int
}

// Apply writes members and leaders, then queues every card through ingest.
// Any invalid leader category or card payload fails the seed.
func (s *Seed) Apply(ctx context.Context, t Target) (SeedResult, error) {
	var res SeedResult
	org := s.OrganizationID

	members := make([]model.Member, 0, len(s.Members))
	for _, m := range s.Members {
		m.OrganizationID = org
		if m.ID == "" {
			m.ID = deriveID(org, "member", memberKey(m.Name, m.Email, m.Phone))
		}
		members = append(members, m)
	}

	leaders := make([]model.Leader, 0, len(s.Leaders))
	for _, l := range s.Leaders {
		cats, err := ParseCategories(strings.Join(l.Categories, ","))
		if err != nil {
			return res, eris.Wrapf(err, "roster: leader %q", l.Name)
		}
		id := l.ID
		if id == "" {
			id = deriveID(org, "leader", match.NormalizeName(l.Name))
		}
		leaders = append(leaders, model.Leader{ID: id, OrganizationID: org, Name: l.Name, Categories: cats})
	}

	var err error
	if res.Members, err = t.UpsertMembers(ctx, members); err != nil {
		return res, eris.Wrap(err, "roster: seed members")
	}
	if res.Leaders, err = t.UpsertLeaders(ctx, leaders); err != nil {
		return res, eris.Wrap(err, "roster: seed leaders")
	}

	svc := ingest.New(t)
	scope := model.Scope{OrganizationID: org}
	for i, c := range s.Cards {
		payload, err := json.Marshal(c)
		if err != nil {
			return res, eris.Wrapf(err, "roster: encode card %d", i)
		}
		if _, err := svc.Ingest(ctx, ingest.Request{
			Scope:         scope,
			BatchID:       c.BatchID,
			FrontImageKey: c.FrontImageKey,
			BackImageKey:  c.BackImageKey,
			Payload:       payload,
		}); err != nil {
			return res, eris.Wrapf(err, "roster: seed card %d", i)
		}
		res.Cards++
	}

	zap.L().Info("roster: seed applied",
		zap.String("org_id", org),
		zap.Int64("members", res.Members),
		zap.Int64("leaders", res.Leaders),
		zap.Int("cards", res.Cards),
	)
	return res, nil
}
