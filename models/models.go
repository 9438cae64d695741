package models

// This file serves as the central export point for all database models
// Import this package to access all model types

// All models are automatically exported from their respective files:
// - User, RefreshToken, PermanentToken, ProfessorProfile, RecruiterProfile from user.go
// - StudentProfile, StudentSkill, Project, Achievement, Certification from student.go
// - SkillVerificationRequest, Assessment, AssessmentSubmission, ProfessorFeedback from verification.go
// - InterviewTranscript, InterviewRequest, Shortlist from interview.go
// - Test, TestAttempt, TestResult, InitialAssessment, InitialAssessmentResult from test.go
// - AIInsights, MatchingResult and related value types from insights.go
// - Enum constants and the JSON column type from types.go

// Database schema overview:
// 1. users - Managed by cookie-based authentication, one of three roles
// 2. student_profiles - One row per student user, keyed by user_id, with readiness and scores
// 3. student_skills - Skills claimed by a student; verification and interview results land here
// 4. skill_verification_requests - Student asks, professor verifies or rejects
// 5. interview_transcripts - Completed AI skill interviews with their evaluation
// 6. tests / test_attempts / test_results - Career, aptitude and communication tests
// 7. initial_assessments / initial_assessment_results - Onboarding assessment per student
// 8. recruiter_profiles / shortlists / interview_requests - Recruiter side of matching
