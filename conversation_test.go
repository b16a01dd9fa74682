package greenroom

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type groupListerClient struct {
	*fakeClient
	groups   []Conversation
	groupErr error
	all      []Conversation
	allErr   error
	listed   []string
}

func (c *groupListerClient) ListGroups(ctx context.Context) ([]Conversation, error) {
	c.listed = append(c.listed, "groups")
	return c.groups, c.groupErr
}

func (c *groupListerClient) ListConversations(ctx context.Context) ([]Conversation, error) {
	c.listed = append(c.listed, "all")
	return c.all, c.allErr
}

func TestLocateDirect(t *testing.T) {
	conv := &fakeConv{id: "conv-1"}
	c := &groupListerClient{fakeClient: &fakeClient{convs: map[string]Conversation{"conv-1": conv}}}
	s := testSession(c)

	if got := s.Locate(context.Background(), "conv-1"); got != conv {
		t.Errorf("Locate = %v, want the direct hit", got)
	}
	if len(c.listed) != 0 {
		t.Errorf("list fallbacks ran on a direct hit: %v", c.listed)
	}
}

func TestLocateFallsBackToGroupScan(t *testing.T) {
	conv := &fakeConv{id: "conv-1"}
	c := &groupListerClient{
		fakeClient: &fakeClient{convErr: errors.New("index lagging")},
		groups:     []Conversation{&fakeConv{id: "other"}, conv},
	}
	s := testSession(c)

	if got := s.Locate(context.Background(), "conv-1"); got != conv {
		t.Errorf("Locate = %v, want the group-scan hit", got)
	}
}

func TestLocateFallsBackToFullScan(t *testing.T) {
	conv := &fakeConv{id: "conv-1"}
	c := &groupListerClient{
		fakeClient: &fakeClient{},
		groupErr:   errors.New("groups unavailable"),
		all:        []Conversation{conv},
	}
	s := testSession(c)

	if got := s.Locate(context.Background(), "conv-1"); got != conv {
		t.Errorf("Locate = %v, want the full-scan hit", got)
	}
	wantOrder := []string{"groups", "all"}
	if len(c.listed) != 2 || c.listed[0] != wantOrder[0] || c.listed[1] != wantOrder[1] {
		t.Errorf("scan order = %v, want %v", c.listed, wantOrder)
	}
}

func TestLocateMiss(t *testing.T) {
	c := &groupListerClient{fakeClient: &fakeClient{}}
	s := testSession(c)
	if got := s.Locate(context.Background(), "conv-404"); got != nil {
		t.Errorf("Locate = %v, want nil on a full miss", got)
	}
	if got := s.Locate(context.Background(), ""); got != nil {
		t.Errorf("Locate(\"\") = %v, want nil", got)
	}
}

type creatorClient struct {
	*fakeClient
	created Conversation
	err     error
	metas   []GroupMetadata
}

func (c *creatorClient) CreateGroup(ctx context.Context, meta GroupMetadata) (Conversation, error) {
	c.metas = append(c.metas, meta)
	return c.created, c.err
}

type starterClient struct {
	*fakeClient
	created Conversation
	err     error
	metas   []GroupMetadata
}

func (c *starterClient) NewGroup(ctx context.Context, meta GroupMetadata) (Conversation, error) {
	c.metas = append(c.metas, meta)
	return c.created, c.err
}

// bothCreatorClient exposes both create generations; the newer must win.
type bothCreatorClient struct {
	*creatorClient
	starterCalls int
}

func (c *bothCreatorClient) NewGroup(ctx context.Context, meta GroupMetadata) (Conversation, error) {
	c.starterCalls++
	return nil, errors.New("should not be used")
}

func TestCreateBuildsFixedMetadata(t *testing.T) {
	conv := &fakeConv{id: "conv-1"}
	c := &creatorClient{fakeClient: &fakeClient{}, created: conv}
	s := testSession(c)

	got, err := s.Create(context.Background(), "Night Stream", "pb-123")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got != conv {
		t.Error("Create did not return the new conversation")
	}
	if len(c.metas) != 1 {
		t.Fatalf("creates = %d, want 1", len(c.metas))
	}
	meta := c.metas[0]
	if meta.Name != "Night Stream" {
		t.Errorf("name = %q, want %q", meta.Name, "Night Stream")
	}
	if !strings.Contains(meta.Description, "pb-123") {
		t.Errorf("description %q does not reference the playback id", meta.Description)
	}
	if meta.ImageURL == "" {
		t.Error("image url is empty")
	}
}

func TestCreatePrefersNewerMethod(t *testing.T) {
	conv := &fakeConv{id: "conv-1"}
	c := &bothCreatorClient{creatorClient: &creatorClient{fakeClient: &fakeClient{}, created: conv}}
	s := testSession(c)

	if _, err := s.Create(context.Background(), "n", "pb"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.starterCalls != 0 {
		t.Errorf("older create method called %d times, want 0", c.starterCalls)
	}
}

func TestCreateUsesFallbackMethod(t *testing.T) {
	conv := &fakeConv{id: "conv-1"}
	c := &starterClient{fakeClient: &fakeClient{}, created: conv}
	s := testSession(c)

	got, err := s.Create(context.Background(), "n", "pb")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got != conv {
		t.Error("Create did not return the new conversation")
	}
}

func TestCreateFailures(t *testing.T) {
	tests := []struct {
		name   string
		client Client
	}{
		{"create error", &creatorClient{fakeClient: &fakeClient{}, err: errors.New("relay rejected")}},
		{"conversation without id", &creatorClient{fakeClient: &fakeClient{}, created: &fakeConv{}}},
		{"nil conversation", &creatorClient{fakeClient: &fakeClient{}}},
		{"no create capability", &fakeClient{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSession(tt.client)
			_, err := s.Create(context.Background(), "n", "pb")
			if !errors.Is(err, ErrConversationCreateFailed) {
				t.Errorf("Create error = %v, want ErrConversationCreateFailed", err)
			}
		})
	}
}
