package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/krshsl/destiny/backend/models"
	"github.com/krshsl/destiny/backend/repository"
	"golang.org/x/crypto/bcrypt"
)

// SeedStore is the slice of the repository the seeder writes through
type SeedStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUserWithProfile(ctx context.Context, user *models.User) error
	GetTest(ctx context.Context, id string) (*models.Test, error)
	SaveTest(ctx context.Context, test *models.Test) error
	SaveSkill(ctx context.Context, skill *models.StudentSkill, readiness repository.ReadinessFunc) error
}

// DatabaseSeeder handles database seeding operations
type DatabaseSeeder struct {
	repo      SeedStore
	readiness *ReadinessCalculator
}

func NewDatabaseSeeder(repo SeedStore, readiness *ReadinessCalculator) *DatabaseSeeder {
	return &DatabaseSeeder{repo: repo, readiness: readiness}
}

const seedMarkerTestID = "seed_aptitude_basics"

func intPtr(v int) *int { return &v }

func seedTests() []*models.Test {
	aptitude := &models.Test{
		ID:           seedMarkerTestID,
		Title:        "Aptitude Basics",
		Description:  "Numerical and logical reasoning warm-up",
		Type:         models.TestTypeAptitude,
		Duration:     15,
		PassingScore: defaultPassingScore,
		TotalMarks:   3,
		Instructions: "Pick one option per question.",
		Questions: models.NewJSON([]models.TestQuestion{
			{ID: "q1", QuestionNumber: 1, Type: models.TestTypeAptitude, Weight: 1, Difficulty: "easy",
				Question: "What is 15% of 200?", Options: []string{"20", "30", "35", "40"}, CorrectAnswer: intPtr(1)},
			{ID: "q2", QuestionNumber: 2, Type: models.TestTypeAptitude, Weight: 1, Difficulty: "medium",
				Question: "Find the next number: 2, 6, 12, 20, ?", Options: []string{"28", "30", "32", "24"}, CorrectAnswer: intPtr(1)},
			{ID: "q3", QuestionNumber: 3, Type: models.TestTypeAptitude, Weight: 1, Difficulty: "medium",
				Question: "A train travels 120 km in 2 hours. What is its speed?", Options: []string{"50 km/h", "60 km/h", "70 km/h", "80 km/h"}, CorrectAnswer: intPtr(1)},
		}),
		CreatedBy: "system",
		IsActive:  true,
	}

	communication := &models.Test{
		ID:           "seed_communication_basics",
		Title:        "Workplace Communication",
		Description:  "Short written responses to everyday workplace situations",
		Type:         models.TestTypeCommunication,
		Duration:     20,
		PassingScore: defaultPassingScore,
		TotalMarks:   20,
		Instructions: "Answer in full sentences. Each answer needs at least 50 characters.",
		Questions: models.NewJSON([]models.TestQuestion{
			{ID: "c1", QuestionNumber: 1, Type: models.TestTypeCommunication, Weight: 10, MinLength: 50,
				Question: "A teammate missed a deadline that blocks your work. How do you raise it?",
				Scenario: "team conflict deadline"},
			{ID: "c2", QuestionNumber: 2, Type: models.TestTypeCommunication, Weight: 10, MinLength: 50,
				Question: "Explain a technical trade-off you made to a non-technical stakeholder.",
				Scenario: "stakeholder explanation"},
		}),
		CreatedBy: "system",
		IsActive:  true,
	}

	var tests []*models.Test
	for _, t := range CareerTestsForRoles(CareerRoles()) {
		tests = append(tests, &t)
	}
	return append(tests, communication, aptitude)
}

// SeedDatabase seeds demo accounts and the built-in tests (idempotent)
func (s *DatabaseSeeder) SeedDatabase(ctx context.Context) error {
	if s.isSeedingComplete(ctx) {
		slog.Info("Database seeding already completed, skipping")
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	users := []models.User{
		{Email: "student@example.com", Password: string(hashedPassword), FullName: "Demo Student", Role: models.RoleStudent},
		{Email: "professor@example.com", Password: string(hashedPassword), FullName: "Demo Professor", Role: models.RoleProfessor},
		{Email: "recruiter@example.com", Password: string(hashedPassword), FullName: "Demo Recruiter", Role: models.RoleRecruiter},
	}
	for _, user := range users {
		if err := s.seedUser(ctx, user); err != nil {
			slog.Error("Failed to seed user", "email", user.Email, "error", err)
		}
	}

	student, err := s.repo.GetUserByEmail(ctx, "student@example.com")
	if err != nil {
		return fmt.Errorf("failed to get demo student: %w", err)
	}
	if student != nil {
		skills := []models.StudentSkill{
			{StudentID: student.ID, Name: "Go", Category: "Programming", SelfLevel: models.SkillLevelIntermediate, Score: 65, VerificationStatus: models.VerificationNotRequested},
			{StudentID: student.ID, Name: "SQL", Category: "Data", SelfLevel: models.SkillLevelBeginner, Score: 45, VerificationStatus: models.VerificationNotRequested},
		}
		for i := range skills {
			if err := s.repo.SaveSkill(ctx, &skills[i], s.readiness.Func()); err != nil {
				slog.Error("Failed to seed skill", "skill", skills[i].Name, "error", err)
			}
		}
	}

	for _, test := range seedTests() {
		if err := s.seedTest(ctx, test); err != nil {
			slog.Error("Failed to seed test", "test_id", test.ID, "error", err)
		}
	}

	slog.Info("Database seeding completed successfully")
	return nil
}

// isSeedingComplete relies on the marker test written last by a previous run
func (s *DatabaseSeeder) isSeedingComplete(ctx context.Context) bool {
	test, err := s.repo.GetTest(ctx, seedMarkerTestID)
	return err == nil && test != nil
}

func (s *DatabaseSeeder) seedUser(ctx context.Context, user models.User) error {
	existingUser, err := s.repo.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("error checking user %s: %w", user.Email, err)
	}
	if existingUser != nil {
		slog.Info("User already exists, skipping", "email", user.Email)
		return nil
	}

	if err := s.repo.CreateUserWithProfile(ctx, &user); err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Email, err)
	}
	slog.Info("Created user", "email", user.Email, "role", user.Role)
	return nil
}

func (s *DatabaseSeeder) seedTest(ctx context.Context, test *models.Test) error {
	existing, err := s.repo.GetTest(ctx, test.ID)
	if err != nil {
		return fmt.Errorf("error checking test %s: %w", test.ID, err)
	}
	if existing != nil {
		return nil
	}
	if err := s.repo.SaveTest(ctx, test); err != nil {
		return fmt.Errorf("failed to create test %s: %w", test.ID, err)
	}
	slog.Info("Created test", "test_id", test.ID, "type", test.Type)
	return nil
}
