package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/recipebox/internal/auth"
	"github.com/hugh/recipebox/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Run migrations
	err = db.AutoMigrate(
		&models.User{},
		&models.AuthToken{},
		&models.Tag{},
		&models.Ingredient{},
		&models.Recipe{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CreateTestUser creates a user with a unique email and a known password
// ("testpass123").
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("testpass123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Base: models.Base{
			ID: uuid.New(),
		},
		Email:        "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash: hash,
		Name:         "Test User",
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// IssueTestToken creates a bearer token bound to the given user.
func IssueTestToken(t *testing.T, db *gorm.DB, user *models.User) string {
	t.Helper()

	key, err := auth.NewTokenKey()
	if err != nil {
		t.Fatalf("failed to generate token key: %v", err)
	}

	token := &models.AuthToken{Key: key, UserID: user.ID}
	if err := db.Create(token).Error; err != nil {
		t.Fatalf("failed to create test token: %v", err)
	}

	return key
}

// CreateTestTag creates a tag owned by the given user.
func CreateTestTag(t *testing.T, db *gorm.DB, userID uuid.UUID, name string) *models.Tag {
	t.Helper()

	tag := &models.Tag{
		Base:   models.Base{ID: uuid.New()},
		Name:   name,
		UserID: userID,
	}
	if err := db.Create(tag).Error; err != nil {
		t.Fatalf("failed to create test tag: %v", err)
	}
	return tag
}

// CreateTestIngredient creates an ingredient owned by the given user.
func CreateTestIngredient(t *testing.T, db *gorm.DB, userID uuid.UUID, name string) *models.Ingredient {
	t.Helper()

	ingredient := &models.Ingredient{
		Base:   models.Base{ID: uuid.New()},
		Name:   name,
		UserID: userID,
	}
	if err := db.Create(ingredient).Error; err != nil {
		t.Fatalf("failed to create test ingredient: %v", err)
	}
	return ingredient
}

// CreateTestRecipe creates a recipe with sample defaults owned by the user.
func CreateTestRecipe(t *testing.T, db *gorm.DB, userID uuid.UUID, title string) *models.Recipe {
	t.Helper()

	recipe := &models.Recipe{
		Base:        models.Base{ID: uuid.New()},
		Title:       title,
		TimeMinutes: 10,
		Price:       5.00,
		UserID:      userID,
	}
	if err := db.Create(recipe).Error; err != nil {
		t.Fatalf("failed to create test recipe: %v", err)
	}
	return recipe
}

// AttachTags links tags to a recipe.
func AttachTags(t *testing.T, db *gorm.DB, recipe *models.Recipe, tags ...*models.Tag) {
	t.Helper()

	list := make([]models.Tag, len(tags))
	for i, tag := range tags {
		list[i] = *tag
	}
	if err := db.Model(recipe).Association("Tags").Replace(list); err != nil {
		t.Fatalf("failed to attach tags: %v", err)
	}
}

// AttachIngredients links ingredients to a recipe.
func AttachIngredients(t *testing.T, db *gorm.DB, recipe *models.Recipe, ingredients ...*models.Ingredient) {
	t.Helper()

	list := make([]models.Ingredient, len(ingredients))
	for i, ing := range ingredients {
		list[i] = *ing
	}
	if err := db.Model(recipe).Association("Ingredients").Replace(list); err != nil {
		t.Fatalf("failed to attach ingredients: %v", err)
	}
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB          *gorm.DB
	AuthService *auth.Service
	User        *models.User
	Token       string
}

// NewTestContext creates a complete test setup with DB, user, and token
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	user := CreateTestUser(t, db)
	token := IssueTestToken(t, db, user)

	return &TestSetup{
		DB:          db,
		AuthService: auth.NewService(db, nil),
		User:        user,
		Token:       token,
	}
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
