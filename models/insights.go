package models

import "time"

type Resource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Type  string `json:"type"`
}

type SuggestedRole struct {
	Role       string  `json:"role"`
	MatchScore float64 `json:"match_score"`
	Reasoning  string  `json:"reasoning"`
}

type LearningRoadmapItem struct {
	Skill         string     `json:"skill"`
	Level         string     `json:"level,omitempty"`
	Priority      string     `json:"priority,omitempty"`
	Steps         []string   `json:"steps,omitempty"`
	Resources     []Resource `json:"resources"`
	EstimatedTime string     `json:"estimated_time"`
}

type ImprovementSuggestion struct {
	ActionItems []string   `json:"action_items"`
	Resources   []Resource `json:"resources"`
	Timeline    string     `json:"timeline"`
}

// AIInsights is persisted on the student profile as jsonb.
type AIInsights struct {
	Strengths       []string              `json:"strengths"`
	Weaknesses      []string              `json:"weaknesses"`
	Recommendations []string              `json:"recommendations,omitempty"`
	SuggestedRoles  []string              `json:"suggested_roles"`
	RoleFit         []SuggestedRole       `json:"role_fit,omitempty"`
	LearningRoadmap []LearningRoadmapItem `json:"learning_roadmap"`
	Summary         string                `json:"summary"`
	Source          string                `json:"source"` // "rules" or "ai"
	LastAnalyzed    time.Time             `json:"last_analyzed"`
}

// MatchingResult ranks one student against a job description.
type MatchingResult struct {
	StudentID      string             `json:"student_id"`
	StudentName    string             `json:"student_name,omitempty"`
	MatchScore     float64            `json:"match_score"`
	Reasons        []string           `json:"reasons"`
	SkillMatches   map[string]float64 `json:"skill_matches"`
	RecommendedFor []string           `json:"recommended_for"`
}
