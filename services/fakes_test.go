package services

import (
	"context"
	"errors"
	"sync"

	"github.com/krshsl/destiny/backend/models"
	"google.golang.org/genai"
)

// fakeLLM returns canned replies in order; an exhausted queue returns err
type fakeLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
}

func (f *fakeLLM) next(prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if len(f.replies) == 0 {
		if f.err != nil {
			return "", f.err
		}
		return "", errors.New("no reply queued")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func (f *fakeLLM) GenerateText(ctx context.Context, prompt string) (string, error) {
	return f.next(prompt)
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	return f.next(prompt)
}

func (f *fakeLLM) Chat(ctx context.Context, history []ChatTurn) (string, error) {
	prompt := ""
	if len(history) > 0 {
		prompt = history[len(history)-1].Text
	}
	return f.next(prompt)
}

type fakeMatchingStore struct {
	profiles  []models.StudentProfile
	recruiter *models.RecruiterProfile
	shortlist []string
}

func (f *fakeMatchingStore) ListStudentProfiles(ctx context.Context) ([]models.StudentProfile, error) {
	return append([]models.StudentProfile(nil), f.profiles...), nil
}

func (f *fakeMatchingStore) GetRecruiterProfile(ctx context.Context, userID string) (*models.RecruiterProfile, error) {
	return f.recruiter, nil
}

func (f *fakeMatchingStore) ShortlistedIDs(ctx context.Context, recruiterID string) ([]string, error) {
	return f.shortlist, nil
}

type publishedEvent struct {
	key     string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{key: routingKey, payload: payload})
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.events))
	for _, e := range p.events {
		keys = append(keys, e.key)
	}
	return keys
}

type notification struct {
	target string
	event  string
}

type recordingNotifier struct {
	mu    sync.Mutex
	users []notification
	roles []notification
}

func (n *recordingNotifier) NotifyUser(userID, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, notification{target: userID, event: event})
}

func (n *recordingNotifier) NotifyRole(role, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.roles = append(n.roles, notification{target: role, event: event})
}
