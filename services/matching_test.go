package services

import (
	"context"
	"testing"

	"github.com/krshsl/destiny/backend/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreJobMatch(t *testing.T) {
	profile := &models.StudentProfile{
		UserID:            "s1",
		FullName:          "Asha",
		JobReadinessScore: 60,
		PreferredRoles:    pq.StringArray{"Backend Developer"},
		Skills: []models.StudentSkill{
			{Name: "Go", Score: 80, VerificationStatus: models.VerificationVerified},
			{Name: "SQL", Score: 40},
		},
	}

	result := ScoreJobMatch(profile)

	assert.Equal(t, "s1", result.StudentID)
	assert.Equal(t, "Asha", result.StudentName)
	assert.InDelta(t, 53, result.MatchScore, 1e-9)
	assert.Equal(t, []string{"Readiness Score: 60", "Average Skill Level: 60", "Verified Skills: 1"}, result.Reasons)
	assert.Equal(t, map[string]float64{"Go": 80, "SQL": 40}, result.SkillMatches)
	assert.Equal(t, []string{"Backend Developer"}, result.RecommendedFor)
}

func TestScoreJobMatchCapsAt100(t *testing.T) {
	skills := make([]models.StudentSkill, 5)
	for i := range skills {
		skills[i] = models.StudentSkill{Name: string(rune('a' + i)), Score: 100, VerificationStatus: models.VerificationVerified}
	}
	result := ScoreJobMatch(&models.StudentProfile{JobReadinessScore: 100, Skills: skills})
	assert.Equal(t, 100.0, result.MatchScore)

	empty := ScoreJobMatch(&models.StudentProfile{JobReadinessScore: 50.5})
	assert.InDelta(t, 25.25, empty.MatchScore, 1e-9)
	assert.Equal(t, "Readiness Score: 50.5", empty.Reasons[0])
	assert.NotNil(t, empty.RecommendedFor)
}

func TestMatchesJobFilters(t *testing.T) {
	profile := &models.StudentProfile{
		JobReadinessScore: 70,
		PreferredRoles:    pq.StringArray{"Full Stack Developer"},
		Skills:            []models.StudentSkill{{Name: "Go", VerificationStatus: models.VerificationVerified}},
	}
	unverified := &models.StudentProfile{JobReadinessScore: 90, Skills: []models.StudentSkill{{Name: "Go"}}}

	tests := []struct {
		name     string
		profile  *models.StudentProfile
		filters  JobFilters
		expected bool
	}{
		{"no filters", profile, JobFilters{}, true},
		{"readiness met", profile, JobFilters{MinReadiness: 70}, true},
		{"readiness missed", profile, JobFilters{MinReadiness: 71}, false},
		{"verified only", profile, JobFilters{VerifiedOnly: true}, true},
		{"verified only rejects unverified", unverified, JobFilters{VerifiedOnly: true}, false},
		{"role substring either way", profile, JobFilters{PreferredRoles: []string{"full stack"}}, true},
		{"role contained in filter", profile, JobFilters{PreferredRoles: []string{"Senior Full Stack Developer"}}, true},
		{"role mismatch", profile, JobFilters{PreferredRoles: []string{"Data Analyst"}}, false},
		{"roles requested but profile has none", unverified, JobFilters{PreferredRoles: []string{"Go"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, matchesJobFilters(tt.profile, tt.filters))
		})
	}
}

func TestMatchesCriteria(t *testing.T) {
	profile := &models.StudentProfile{
		JobReadinessScore: 75,
		JobTypes:          pq.StringArray{"internship"},
		PreferredRoles:    pq.StringArray{"Backend Developer"},
		Skills: []models.StudentSkill{
			{Name: "JavaScript", Score: 50},
			{Name: "Java", Score: 90},
			{Name: "Go", Score: 65, VerificationStatus: models.VerificationVerified},
		},
	}

	tests := []struct {
		name     string
		criteria MatchCriteria
		expected bool
	}{
		{"empty criteria", MatchCriteria{}, true},
		{"skill above default min score", MatchCriteria{Skills: []string{"go"}}, true},
		{"skill below explicit min score", MatchCriteria{Skills: []string{"go"}, MinScore: 70}, false},
		{"first matching skill decides", MatchCriteria{Skills: []string{"java"}}, false},
		{"any requested skill may match", MatchCriteria{Skills: []string{"java", "go"}}, true},
		{"unknown skill", MatchCriteria{Skills: []string{"rust"}}, false},
		{"job type exact", MatchCriteria{JobTypes: []string{"internship"}}, true},
		{"job type mismatch", MatchCriteria{JobTypes: []string{"full-time"}}, false},
		{"preferred role substring", MatchCriteria{PreferredRoles: []string{"backend"}}, true},
		{"preferred role mismatch", MatchCriteria{PreferredRoles: []string{"designer"}}, false},
		{"readiness", MatchCriteria{MinReadiness: 80}, false},
		{"verified only", MatchCriteria{VerifiedOnly: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, matchesCriteria(profile, tt.criteria))
		})
	}
}

func matchingFixture() *fakeMatchingStore {
	return &fakeMatchingStore{
		profiles: []models.StudentProfile{
			{UserID: "low", JobReadinessScore: 40, ProfileVisibility: models.VisibleToAll},
			{UserID: "hidden", JobReadinessScore: 99, ProfileVisibility: models.VisibilityHidden},
			{UserID: "hr", JobReadinessScore: 80, ProfileVisibility: models.VisibleToHR},
			{UserID: "prof", JobReadinessScore: 90, ProfileVisibility: models.VisibleToProfessor},
			{UserID: "mid", JobReadinessScore: 60},
		},
	}
}

func profileIDs(profiles []models.StudentProfile) []string {
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.UserID)
	}
	return ids
}

func TestMatchStudentsToJobDescription(t *testing.T) {
	svc := NewMatchingService(matchingFixture(), NewAIService(nil), nil)
	ctx := context.Background()

	results, err := svc.MatchStudentsToJobDescription(ctx, models.RoleRecruiter, "Go developer", JobFilters{})
	require.NoError(t, err)
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.StudentID)
	}
	assert.Equal(t, []string{"hr", "mid", "low"}, ids)

	results, err = svc.MatchStudentsToJobDescription(ctx, models.RoleProfessor, "Go developer", JobFilters{MinReadiness: 50})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "prof", results[0].StudentID)

	_, err = svc.MatchStudentsToJobDescription(ctx, models.RoleRecruiter, "   ", JobFilters{})
	assert.True(t, IsCode(err, CodeInvalidArgument))
}

func TestFindMatchingStudents(t *testing.T) {
	svc := NewMatchingService(matchingFixture(), NewAIService(nil), nil)

	students, err := svc.FindMatchingStudents(context.Background(), models.RoleRecruiter, MatchCriteria{MinReadiness: 50})
	require.NoError(t, err)
	assert.Equal(t, []string{"hr", "mid"}, profileIDs(students))
}

func TestRecommendStudents(t *testing.T) {
	store := matchingFixture()
	svc := NewMatchingService(store, NewAIService(nil), nil)
	ctx := context.Background()

	students, err := svc.RecommendStudents(ctx, "r1", 5)
	require.NoError(t, err)
	assert.Empty(t, students, "unknown recruiters get no recommendations")

	store.recruiter = &models.RecruiterProfile{UserID: "r1"}
	store.shortlist = []string{"hr"}

	students, err = svc.RecommendStudents(ctx, "r1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"mid", "low"}, profileIDs(students))

	students, err = svc.RecommendStudents(ctx, "r1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"mid"}, profileIDs(students))
}

func TestMatchStudentsWithAI(t *testing.T) {
	llm := &fakeLLM{replies: []string{"```json\n[{\"student_id\":\"low\",\"match_score\":40},{\"student_id\":\"mid\",\"match_score\":140,\"reasons\":[\"Go\"]}]\n```"}}
	svc := NewMatchingService(matchingFixture(), NewAIService(llm), nil)

	matches, err := svc.MatchStudentsWithAI(context.Background(), models.RoleRecruiter, "Go developer", JobFilters{})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, AIMatch{StudentID: "mid", MatchScore: 100, Reasons: []string{"Go"}}, matches[0])
	assert.Equal(t, AIMatch{StudentID: "low", MatchScore: 40, Reasons: []string{}}, matches[1])
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Go developer")

	none, err := NewMatchingService(matchingFixture(), NewAIService(nil), nil).
		MatchStudentsWithAI(context.Background(), models.RoleRecruiter, "Go developer", JobFilters{MinReadiness: 100})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCanViewStudent(t *testing.T) {
	tests := []struct {
		visibility string
		role       string
		expected   bool
	}{
		{"", models.RoleRecruiter, true},
		{models.VisibleToAll, models.RoleStudent, true},
		{models.VisibleToHR, models.RoleRecruiter, true},
		{models.VisibleToHR, models.RoleProfessor, false},
		{models.VisibleToProfessor, models.RoleProfessor, true},
		{models.VisibleToProfessor, models.RoleRecruiter, false},
		{models.VisibilityHidden, models.RoleProfessor, false},
		{"unknown", models.RoleProfessor, false},
	}

	for _, tt := range tests {
		got := CanViewStudent(&models.StudentProfile{ProfileVisibility: tt.visibility}, tt.role)
		assert.Equal(t, tt.expected, got, "visibility %q for %s", tt.visibility, tt.role)
	}
	assert.False(t, CanViewStudent(nil, models.RoleProfessor))
}

func TestImprovementSuggestions(t *testing.T) {
	tests := []struct {
		current, target float64
		timeline        string
	}{
		{70, 80, "2-4 weeks"},
		{60, 0, "4-8 weeks"},
		{40, 80, "8-12 weeks"},
		{65, 80, "2-4 weeks"},
	}

	for _, tt := range tests {
		got := ImprovementSuggestions("Go", tt.current, tt.target)
		assert.Equal(t, tt.timeline, got.Timeline, "current %v target %v", tt.current, tt.target)
		assert.Len(t, got.ActionItems, 4)
		assert.Len(t, got.Resources, 3)
		assert.Equal(t, "Learn Go", got.Resources[0].Title)
	}
}
