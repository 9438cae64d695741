package repository

import (
	"testing"

	"github.com/krshsl/destiny/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyProfile(t *testing.T) {
	user := &models.User{ID: "u1", Email: "asha@example.com", FullName: "Asha"}

	user.Role = models.RoleStudent
	profile, err := EmptyProfile(user)
	require.NoError(t, err)
	student, ok := profile.(*models.StudentProfile)
	require.True(t, ok)
	assert.Equal(t, "u1", student.UserID)
	assert.Equal(t, "asha@example.com", student.Email)
	assert.Equal(t, models.VerificationNotRequested, student.VerificationStatus)
	assert.Equal(t, models.ReadinessNotReady, student.JobReadinessLevel)
	assert.Equal(t, models.VisibleToAll, student.ProfileVisibility)
	assert.Zero(t, student.JobReadinessScore)
	assert.Empty(t, student.Skills)

	user.Role = models.RoleProfessor
	profile, err = EmptyProfile(user)
	require.NoError(t, err)
	assert.IsType(t, &models.ProfessorProfile{}, profile)

	user.Role = models.RoleRecruiter
	profile, err = EmptyProfile(user)
	require.NoError(t, err)
	assert.Equal(t, "Asha", profile.(*models.RecruiterProfile).FullName)

	user.Role = "admin"
	_, err = EmptyProfile(user)
	assert.Error(t, err)
}
