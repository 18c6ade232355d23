package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fanzyb/roblox-mooncrest/models"
	"github.com/fanzyb/roblox-mooncrest/repository"
)

// Metric is a leaderboard ordering.
type Metric string

const (
	MetricXP       Metric = "xp"
	MetricActivity Metric = "activity"
)

func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(s)) {
	case MetricXP, "":
		return MetricXP, nil
	case MetricActivity, "expeditions", "expo":
		return MetricActivity, nil
	}
	return "", fmt.Errorf("unknown leaderboard metric %q", s)
}

func (m Metric) column() repository.SortColumn {
	if m == MetricActivity {
		return repository.SortByActivity
	}
	return repository.SortByXP
}

func (m Metric) Label() string {
	if m == MetricActivity {
		return "Expeditions"
	}
	return "XP"
}

// Other is the metric the switch button flips to.
func (m Metric) Other() Metric {
	if m == MetricActivity {
		return MetricXP
	}
	return MetricActivity
}

type LeaderboardRow struct {
	Rank       int64  `json:"rank"`
	ExternalID string `json:"external_id"`
	Username   string `json:"username"`
	Value      int64  `json:"value"`
	TierName   string `json:"level"`
}

type LeaderboardPage struct {
	Metric     Metric           `json:"metric"`
	PageNumber int              `json:"page"`
	TotalPages int              `json:"total_pages"`
	PageSize   int              `json:"page_size"`
	Total      int64            `json:"total"`
	Rows       []LeaderboardRow `json:"rows"`
}

func (p *LeaderboardPage) HasPrev() bool { return p.PageNumber > 1 }
func (p *LeaderboardPage) HasNext() bool { return p.PageNumber < p.TotalPages }

// LeaderboardService computes ranking views straight from the ledger on every call.
type LeaderboardService struct {
	Accounts repository.AccountRepository
	Resolver *TargetResolver
	Levels   LevelTable
	Catalog  *AchievementCatalog
	PageSize int
}

// Page returns one leaderboard page. pageNumber is clamped into [1, totalPages].
func (s *LeaderboardService) Page(ctx context.Context, metric Metric, pageNumber, pageSize int) (*LeaderboardPage, error) {
	if pageSize <= 0 {
		pageSize = s.PageSize
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	total, err := s.Accounts.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count accounts: %w", err)
	}
	totalPages := max(1, int((total+int64(pageSize)-1)/int64(pageSize)))
	pageNumber = max(1, min(totalPages, pageNumber))

	offset := (pageNumber - 1) * pageSize
	rows, err := s.Accounts.Page(ctx, metric.column(), offset, pageSize)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard page %d: %w", pageNumber, err)
	}

	out := &LeaderboardPage{
		Metric:     metric,
		PageNumber: pageNumber,
		TotalPages: totalPages,
		PageSize:   pageSize,
		Total:      total,
		Rows:       make([]LeaderboardRow, 0, len(rows)),
	}
	for i, acc := range rows {
		out.Rows = append(out.Rows, LeaderboardRow{
			Rank:       int64(offset + i + 1),
			ExternalID: acc.ExternalID,
			Username:   acc.ExternalUsername,
			Value:      fieldValue(&acc, metricField(metric)),
			TierName:   ComputeProgress(acc.XP, s.Levels).TierName,
		})
	}
	return out, nil
}

func metricField(m Metric) Field {
	if m == MetricActivity {
		return FieldActivity
	}
	return FieldXP
}

type HallOfFameEntry struct {
	Account      models.LinkedAccount    `json:"account"`
	Achievements []models.AchievementDef `json:"achievements"`
}

// HallOfFame lists every account holding at least one achievement, highest XP first.
func (s *LeaderboardService) HallOfFame(ctx context.Context) ([]HallOfFameEntry, error) {
	rows, err := s.Accounts.WithAchievements(ctx)
	if err != nil {
		return nil, fmt.Errorf("load hall of fame: %w", err)
	}
	out := make([]HallOfFameEntry, 0, len(rows))
	for _, acc := range rows {
		defs := s.Catalog.Resolve(acc.Achievements)
		if len(defs) == 0 {
			continue
		}
		out = append(out, HallOfFameEntry{Account: acc, Achievements: defs})
	}
	return out, nil
}

// RankCard is everything the /rank view shows.
type RankCard struct {
	Account          *models.LinkedAccount   `json:"account"`
	Progress         Progress                `json:"progress"`
	AvatarURL        string                  `json:"avatar_url,omitempty"`
	Achievements     []models.AchievementDef `json:"achievements"`
	XPPosition       int64                   `json:"xp_position"`
	ActivityPosition int64                   `json:"expedition_position"`
}

// RankCard resolves the target (creating the record for a new username) and builds its card.
// The avatar is optional: lookup failures leave it empty.
func (s *LeaderboardService) RankCard(ctx context.Context, target Target) (*RankCard, error) {
	acc, err := s.Resolver.Resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	return s.card(ctx, acc)
}

func (s *LeaderboardService) card(ctx context.Context, acc *models.LinkedAccount) (*RankCard, error) {
	card := &RankCard{
		Account:      acc,
		Progress:     ComputeProgress(acc.XP, s.Levels),
		Achievements: s.Catalog.Resolve(acc.Achievements),
	}
	var err error
	if card.XPPosition, err = s.Accounts.Position(ctx, repository.SortByXP, acc); err != nil {
		return nil, fmt.Errorf("xp position for %s: %w", acc.ExternalID, err)
	}
	if card.ActivityPosition, err = s.Accounts.Position(ctx, repository.SortByActivity, acc); err != nil {
		return nil, fmt.Errorf("expedition position for %s: %w", acc.ExternalID, err)
	}
	if id, err := externalUserID(acc); err == nil && s.Resolver.Identity != nil {
		_ = runEffect("avatar for "+acc.ExternalID, func() error {
			url, err := s.Resolver.Identity.AvatarURL(ctx, id)
			card.AvatarURL = url
			return err
		})
	}
	return card, nil
}

// Account returns the card for a known Roblox id without touching Roblox for the username.
func (s *LeaderboardService) Account(ctx context.Context, externalID string) (*RankCard, error) {
	acc, err := s.Resolver.Resolve(ctx, Target{ExternalID: externalID})
	if err != nil {
		return nil, err
	}
	return s.card(ctx, acc)
}

// Leaderboard button tokens

type LeaderboardAction string

const (
	ActionPrev    LeaderboardAction = "prev"
	ActionNext    LeaderboardAction = "next"
	ActionMetric  LeaderboardAction = "metric"
	ActionRefresh LeaderboardAction = "page"
)

const tokenPrefix = "lb"

// LeaderboardToken is the whole pagination state of a leaderboard button.
// It round-trips through the component's custom id, so any process can serve the click.
type LeaderboardToken struct {
	Action   LeaderboardAction
	Metric   Metric
	Page     int
	IssuedAt time.Time
}

// Encode renders lb:<action>:<metric>:<page>:<issuedUnix>.
func (t LeaderboardToken) Encode() string {
	return strings.Join([]string{
		tokenPrefix,
		string(t.Action),
		string(t.Metric),
		strconv.Itoa(t.Page),
		strconv.FormatInt(t.IssuedAt.Unix(), 10),
	}, ":")
}

func IsLeaderboardToken(customID string) bool {
	return strings.HasPrefix(customID, tokenPrefix+":")
}

func DecodeLeaderboardToken(customID string) (LeaderboardToken, error) {
	parts := strings.Split(customID, ":")
	if len(parts) != 5 || parts[0] != tokenPrefix {
		return LeaderboardToken{}, fmt.Errorf("malformed leaderboard token %q", customID)
	}
	action := LeaderboardAction(parts[1])
	switch action {
	case ActionPrev, ActionNext, ActionMetric, ActionRefresh:
	default:
		return LeaderboardToken{}, fmt.Errorf("unknown leaderboard action %q", parts[1])
	}
	metric := Metric(parts[2])
	if metric != MetricXP && metric != MetricActivity {
		return LeaderboardToken{}, fmt.Errorf("unknown leaderboard metric %q", parts[2])
	}
	page, err := strconv.Atoi(parts[3])
	if err != nil {
		return LeaderboardToken{}, fmt.Errorf("bad leaderboard page %q: %w", parts[3], err)
	}
	issued, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return LeaderboardToken{}, fmt.Errorf("bad leaderboard timestamp %q: %w", parts[4], err)
	}
	return LeaderboardToken{Action: action, Metric: metric, Page: page, IssuedAt: time.Unix(issued, 0)}, nil
}

// Target is the page the click asks for. Metric and Page always carry the view the
// button was rendered on; a metric switch flips the metric and starts at page 1.
func (t LeaderboardToken) Target() (Metric, int) {
	switch t.Action {
	case ActionPrev:
		return t.Metric, t.Page - 1
	case ActionNext:
		return t.Metric, t.Page + 1
	case ActionMetric:
		return t.Metric.Other(), 1
	}
	return t.Metric, t.Page
}

// Current is the view the button was rendered on.
func (t LeaderboardToken) Current() (Metric, int) {
	return t.Metric, t.Page
}

// Expired reports whether the button has outlived ttl. A zero ttl never expires.
func (t LeaderboardToken) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(t.IssuedAt) > ttl
}

// Controls are the tokens for the buttons rendered under a page.
type Controls struct {
	Prev, Next, Switch LeaderboardToken
}

func ControlsFor(p *LeaderboardPage, issued time.Time) Controls {
	return Controls{
		Prev:   LeaderboardToken{Action: ActionPrev, Metric: p.Metric, Page: p.PageNumber, IssuedAt: issued},
		Next:   LeaderboardToken{Action: ActionNext, Metric: p.Metric, Page: p.PageNumber, IssuedAt: issued},
		Switch: LeaderboardToken{Action: ActionMetric, Metric: p.Metric, Page: p.PageNumber, IssuedAt: issued},
	}
}
