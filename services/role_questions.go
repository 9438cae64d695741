package services

import (
	"log/slog"
	"strings"

	"github.com/krshsl/destiny/backend/models"
)

const (
	roleDataAnalyst   = "Data Analyst"
	roleCyberSecurity = "Cyber Security Engineer"
	roleFullStack     = "Full Stack Developer"
)

func technical(id, role, difficulty, question string, options ...string) models.ChoiceQuestion {
	return models.ChoiceQuestion{
		ID:           id,
		Question:     question,
		Options:      options,
		Correct:      0,
		Difficulty:   difficulty,
		RoleSpecific: role,
	}
}

var dataAnalystQuestions = []models.ChoiceQuestion{
	technical("da_tech_1", roleDataAnalyst, "medium", "Which SQL query would return the top 3 departments by average salary?",
		"SELECT department, AVG(salary) AS avg_sal FROM employees GROUP BY department ORDER BY avg_sal DESC LIMIT 3",
		"SELECT TOP 3 department, AVG(salary) FROM employees",
		"SELECT department FROM employees WHERE salary > AVG(salary)",
		"SELECT * FROM employees ORDER BY salary DESC LIMIT 3"),
	technical("da_tech_2", roleDataAnalyst, "medium", "What does normalization in database design primarily prevent?",
		"Data redundancy and inconsistencies", "Slow query performance", "Unauthorized access", "Data corruption"),
	technical("da_tech_3", roleDataAnalyst, "easy", `In pandas, how would you filter a DataFrame for rows where column "age" is greater than 30?`,
		`df[df["age"] > 30]`, `df.filter(column="age", value=30)`, "df.where(age > 30)", "df.select(df.age > 30)"),
	technical("da_tech_4", roleDataAnalyst, "easy", "Which visualization is best for showing relationship between two continuous variables?",
		"Scatter plot", "Bar chart", "Pie chart", "Line chart"),
	technical("da_tech_5", roleDataAnalyst, "medium", "What is the purpose of a pivot table in data analysis?",
		"To summarize and reorganize data for easier analysis", "To backup data safely", "To encrypt sensitive information", "To sort data alphabetically"),
}

var cyberSecurityQuestions = []models.ChoiceQuestion{
	technical("cs_tech_1", roleCyberSecurity, "medium", "Which encryption algorithm is considered broken and should NOT be used?",
		"MD5 (Message Digest)", "AES-256", "RSA-2048", "SHA-256"),
	technical("cs_tech_2", roleCyberSecurity, "easy", "What is the primary purpose of a firewall?",
		"Monitor and control network traffic based on security rules", "Encrypt all data on the network", "Backup data regularly", "Speed up internet connection"),
	technical("cs_tech_3", roleCyberSecurity, "easy", "Which of these is NOT a type of malware?",
		"Antivirus software", "Trojan", "Ransomware", "Worm"),
	technical("cs_tech_4", roleCyberSecurity, "medium", "What does a DDoS attack attempt to do?",
		"Overwhelm a system with traffic to make it unavailable", "Steal personal data from users", "Modify website content", "Encrypt user files for ransom"),
	technical("cs_tech_5", roleCyberSecurity, "medium", "Which practice is most important for cybersecurity?",
		"Regular security audits and updates", "Expensive hardware", "Multiple internet connections", "Bright office lighting"),
}

var fullStackQuestions = []models.ChoiceQuestion{
	technical("fsd_tech_1", roleFullStack, "medium", "What is the purpose of middleware in Express.js?",
		"To intercept and process requests/responses in the pipeline", "To store session data", "To render HTML templates", "To manage database connections"),
	technical("fsd_tech_2", roleFullStack, "easy", "In React, what is the primary use of the useEffect hook?",
		"To perform side effects after render", "To manage component state", "To handle form submissions", "To style components"),
	technical("fsd_tech_3", roleFullStack, "easy", "Which HTTP method is used to retrieve data without modifying server state?",
		"GET", "POST", "PUT", "DELETE"),
	technical("fsd_tech_4", roleFullStack, "medium", "What does REST stand for?",
		"Representational State Transfer", "Remote Execution System Transfer", "Redundant Server Transfer", "Real-time Encryption Service"),
	technical("fsd_tech_5", roleFullStack, "medium", "In MongoDB, what is a collection?",
		"A set of documents (similar to a table in SQL)", "A backup of data", "A connection pool", "An index on data"),
}

// TechnicalQuestionsForRole matches the role loosely; unknown roles get none
func TechnicalQuestionsForRole(role string) []models.ChoiceQuestion {
	normalized := strings.ToLower(strings.TrimSpace(role))
	var src []models.ChoiceQuestion
	switch {
	case strings.Contains(normalized, "data analyst"):
		src = dataAnalystQuestions
	case strings.Contains(normalized, "security"):
		src = cyberSecurityQuestions
	case strings.Contains(normalized, "full stack"), strings.Contains(normalized, "fullstack"):
		src = fullStackQuestions
	default:
		slog.Warn("No technical questions for role", "role", role)
		return []models.ChoiceQuestion{}
	}
	return append([]models.ChoiceQuestion(nil), src...)
}

func AvailableRoles() []string {
	return []string{roleDataAnalyst, roleCyberSecurity, roleFullStack}
}

func IsSupportedRole(role string) bool {
	for _, r := range AvailableRoles() {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}
