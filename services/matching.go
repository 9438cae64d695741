package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/krshsl/destiny/backend/models"
)

type MatchingStore interface {
	ListStudentProfiles(ctx context.Context) ([]models.StudentProfile, error)
	GetRecruiterProfile(ctx context.Context, userID string) (*models.RecruiterProfile, error)
	ShortlistedIDs(ctx context.Context, recruiterID string) ([]string, error)
}

// JobFilters narrows the candidate pool; zero values disable a filter
type JobFilters struct {
	MinReadiness   float64  `json:"min_readiness" validate:"gte=0,lte=100"`
	VerifiedOnly   bool     `json:"verified_only"`
	PreferredRoles []string `json:"preferred_roles"`
}

type MatchCriteria struct {
	Skills         []string `json:"skills"`
	MinScore       float64  `json:"min_score" validate:"gte=0,lte=100"`
	MinReadiness   float64  `json:"min_readiness" validate:"gte=0,lte=100"`
	VerifiedOnly   bool     `json:"verified_only"`
	JobTypes       []string `json:"job_type"`
	PreferredRoles []string `json:"preferred_roles"`
}

type MatchingService struct {
	store MatchingStore
	ai    *AIService
	cache *Cache
}

func NewMatchingService(store MatchingStore, ai *AIService, cache *Cache) *MatchingService {
	return &MatchingService{store: store, ai: ai, cache: cache}
}

func hasVerifiedSkill(profile *models.StudentProfile) bool {
	for _, skill := range profile.Skills {
		if skill.VerificationStatus == models.VerificationVerified {
			return true
		}
	}
	return false
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// visibleStudents loads every student the viewer role may see
func (s *MatchingService) visibleStudents(ctx context.Context, viewerRole string) ([]models.StudentProfile, error) {
	profiles, err := s.store.ListStudentProfiles(ctx)
	if err != nil {
		return nil, wrapInternal("Failed to load students", err)
	}
	visible := profiles[:0]
	for i := range profiles {
		if CanViewStudent(&profiles[i], viewerRole) {
			visible = append(visible, profiles[i])
		}
	}
	return visible, nil
}

// ScoreJobMatch is 0.5 x readiness + 0.3 x average skill score + 5 per verified skill, capped at 100
func ScoreJobMatch(profile *models.StudentProfile) models.MatchingResult {
	skillMatches := make(map[string]float64, len(profile.Skills))
	total, verified := 0.0, 0
	for _, skill := range profile.Skills {
		skillMatches[skill.Name] = skill.Score
		total += skill.Score
		if skill.VerificationStatus == models.VerificationVerified {
			verified++
		}
	}
	avg := 0.0
	if len(profile.Skills) > 0 {
		avg = total / float64(len(profile.Skills))
	}

	score := profile.JobReadinessScore*0.5 + avg*0.3 + float64(verified)*5
	recommendedFor := append([]string{}, profile.PreferredRoles...)

	return models.MatchingResult{
		StudentID:   profile.UserID,
		StudentName: profile.FullName,
		MatchScore:  math.Min(100, score),
		Reasons: []string{
			"Readiness Score: " + formatNumber(profile.JobReadinessScore),
			fmt.Sprintf("Average Skill Level: %d", int(math.Round(avg))),
			fmt.Sprintf("Verified Skills: %d", verified),
		},
		SkillMatches:   skillMatches,
		RecommendedFor: recommendedFor,
	}
}

func matchesJobFilters(profile *models.StudentProfile, f JobFilters) bool {
	if f.MinReadiness > 0 && profile.JobReadinessScore < f.MinReadiness {
		return false
	}
	if f.VerifiedOnly && !hasVerifiedSkill(profile) {
		return false
	}
	if len(f.PreferredRoles) > 0 {
		for _, role := range profile.PreferredRoles {
			role = strings.ToLower(role)
			for _, pr := range f.PreferredRoles {
				pr = strings.ToLower(pr)
				if strings.Contains(role, pr) || strings.Contains(pr, role) {
					return true
				}
			}
		}
		return false
	}
	return true
}

// MatchStudentsToJobDescription ranks the visible students for a job, highest score first
func (s *MatchingService) MatchStudentsToJobDescription(ctx context.Context, viewerRole, jobDescription string, filters JobFilters) ([]models.MatchingResult, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return nil, invalidArgument("Job description is required")
	}

	key := matchCacheKey("job", viewerRole, jobDescription, filters)
	var cached []models.MatchingResult
	if s.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	students, err := s.visibleStudents(ctx, viewerRole)
	if err != nil {
		return nil, err
	}
	results := make([]models.MatchingResult, 0, len(students))
	for i := range students {
		if matchesJobFilters(&students[i], filters) {
			results = append(results, ScoreJobMatch(&students[i]))
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MatchScore > results[j].MatchScore
	})

	s.cache.SetJSON(ctx, key, results)
	return results, nil
}

// MatchStudentsWithAI lets the model score the filtered candidates against the job
func (s *MatchingService) MatchStudentsWithAI(ctx context.Context, viewerRole, jobDescription string, filters JobFilters) ([]AIMatch, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return nil, invalidArgument("Job description is required")
	}
	students, err := s.visibleStudents(ctx, viewerRole)
	if err != nil {
		return nil, err
	}

	candidates := make([]JobCandidate, 0, len(students))
	for i := range students {
		if !matchesJobFilters(&students[i], filters) {
			continue
		}
		skills := make([]SkillSummary, 0, len(students[i].Skills))
		for _, skill := range students[i].Skills {
			skills = append(skills, SkillSummary{Name: skill.Name, Score: skill.Score})
		}
		candidates = append(candidates, JobCandidate{ID: students[i].UserID, Skills: skills, ReadinessScore: students[i].JobReadinessScore})
	}
	if len(candidates) == 0 {
		return []AIMatch{}, nil
	}

	matches := s.ai.MatchStudentsToJob(ctx, jobDescription, candidates)
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
	return matches, nil
}

func matchesCriteria(profile *models.StudentProfile, c MatchCriteria) bool {
	if c.MinReadiness > 0 && profile.JobReadinessScore < c.MinReadiness {
		return false
	}
	if c.VerifiedOnly && !hasVerifiedSkill(profile) {
		return false
	}

	if len(c.Skills) > 0 {
		minScore := c.MinScore
		if minScore == 0 {
			minScore = 60
		}
		found := false
		for _, name := range c.Skills {
			name = strings.ToLower(name)
			for _, skill := range profile.Skills {
				if strings.Contains(strings.ToLower(skill.Name), name) {
					// only the first skill whose name matches counts
					found = skill.Score >= minScore
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(c.JobTypes) > 0 {
		found := false
		for _, jt := range c.JobTypes {
			for _, have := range profile.JobTypes {
				if have == jt {
					found = true
				}
			}
		}
		if !found {
			return false
		}
	}

	if len(c.PreferredRoles) > 0 {
		found := false
		for _, role := range profile.PreferredRoles {
			for _, pr := range c.PreferredRoles {
				if strings.Contains(strings.ToLower(role), strings.ToLower(pr)) {
					found = true
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FindMatchingStudents filters visible students by criteria, highest readiness first
func (s *MatchingService) FindMatchingStudents(ctx context.Context, viewerRole string, criteria MatchCriteria) ([]models.StudentProfile, error) {
	students, err := s.visibleStudents(ctx, viewerRole)
	if err != nil {
		return nil, err
	}
	matches := make([]models.StudentProfile, 0, len(students))
	for i := range students {
		if matchesCriteria(&students[i], criteria) {
			matches = append(matches, students[i])
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].JobReadinessScore > matches[j].JobReadinessScore
	})
	return matches, nil
}

// RecommendStudents returns the top readiness students the recruiter has not shortlisted.
// An unknown recruiter gets an empty list.
func (s *MatchingService) RecommendStudents(ctx context.Context, recruiterID string, limit int) ([]models.StudentProfile, error) {
	if limit <= 0 {
		limit = 10
	}
	recruiter, err := s.store.GetRecruiterProfile(ctx, recruiterID)
	if err != nil {
		return nil, wrapInternal("Failed to load recruiter", err)
	}
	if recruiter == nil {
		return []models.StudentProfile{}, nil
	}

	shortlisted, err := s.store.ShortlistedIDs(ctx, recruiterID)
	if err != nil {
		return nil, wrapInternal("Failed to load shortlist", err)
	}
	skip := make(map[string]struct{}, len(shortlisted))
	for _, id := range shortlisted {
		skip[id] = struct{}{}
	}

	students, err := s.visibleStudents(ctx, models.RoleRecruiter)
	if err != nil {
		return nil, err
	}
	out := make([]models.StudentProfile, 0, limit)
	for _, student := range students {
		if _, ok := skip[student.UserID]; !ok {
			out = append(out, student)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].JobReadinessScore > out[j].JobReadinessScore
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
