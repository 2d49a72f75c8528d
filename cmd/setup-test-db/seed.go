package main

import (
	"context"
	"os"
	"time"

	"srcapp/internal/models"
	"srcapp/internal/observability"
	"srcapp/internal/services"
	contextutils "srcapp/internal/utils"

	"gopkg.in/yaml.v3"
)

// TestUser is a user in the fixture file
type TestUser struct {
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Email     string `yaml:"email"`
	Role      string `yaml:"role"`
}

// TestSubmitter names who raised a fixture item. Registered submitters refer
// to a fixture user by username.
type TestSubmitter struct {
	Kind     string `yaml:"kind"`
	Username string `yaml:"username"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Phone    string `yaml:"phone"`
}

// TestFeedback is a feedback item in the fixture file
type TestFeedback struct {
	Submitter  TestSubmitter `yaml:"submitter"`
	Category   string        `yaml:"category"`
	Message    string        `yaml:"message"`
	Assignee   string        `yaml:"assignee"`
	Status     string        `yaml:"status"`
	Resolution string        `yaml:"resolution"`
	Responder  string        `yaml:"responder"`
}

// Fixtures is the whole fixture file
type Fixtures struct {
	Users    []TestUser     `yaml:"users"`
	Feedback []TestFeedback `yaml:"feedback"`
}

type userCreator interface {
	CreateUser(ctx context.Context, actor models.Actor, input services.CreateUserInput) (*models.User, error)
}

type feedbackSeeder interface {
	CreateFeedback(ctx context.Context, item *models.FeedbackItem) (*models.FeedbackItem, error)
	UpdateAssignment(ctx context.Context, id, assigneeID int, status models.FeedbackStatus) (*models.FeedbackItem, error)
	RecordResponse(ctx context.Context, id int, resolution string, status models.FeedbackStatus, respondedBy int, respondedAt time.Time) (*models.FeedbackItem, error)
}

func loadFixtures(filePath string) (*Fixtures, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to read %s", filePath)
	}

	var fixtures Fixtures
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to parse %s", filePath)
	}
	return &fixtures, nil
}

func loadAndCreateUsers(ctx context.Context, testUsers []TestUser, userService userCreator, logger *observability.Logger) (map[string]*models.User, error) {
	users := make(map[string]*models.User, len(testUsers))
	for _, testUser := range testUsers {
		role, ok := models.ParseRole(testUser.Role)
		if !ok {
			return nil, contextutils.ErrorWithContextf("user %s has unknown role %q", testUser.Username, testUser.Role)
		}

		user, err := userService.CreateUser(ctx, models.SystemActor(), services.CreateUserInput{
			Username:  testUser.Username,
			Password:  testUser.Password,
			FirstName: testUser.FirstName,
			LastName:  testUser.LastName,
			Email:     testUser.Email,
			Role:      role,
		})
		if err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to create user %s", testUser.Username)
		}

		logger.Info(ctx, "Created user", map[string]interface{}{"username": user.Username, "role": string(user.Role), "user_id": user.ID})
		users[testUser.Username] = user
	}
	return users, nil
}

func loadAndCreateFeedback(ctx context.Context, testItems []TestFeedback, users map[string]*models.User, store feedbackSeeder, logger *observability.Logger) (int, error) {
	lookup := func(username, field string, index int) (*models.User, error) {
		user, ok := users[username]
		if !ok {
			return nil, contextutils.ErrorWithContextf("feedback %d: %s %q is not a fixture user", index, field, username)
		}
		return user, nil
	}

	for i, testItem := range testItems {
		submitter, err := fixtureSubmitter(testItem.Submitter, users)
		if err != nil {
			return i, contextutils.WrapErrorf(err, "feedback %d", i)
		}
		category, ok := models.ParseCategory(testItem.Category)
		if !ok {
			return i, contextutils.ErrorWithContextf("feedback %d: unknown category %q", i, testItem.Category)
		}
		// Status only applies to a response; assignment alone means in progress
		status := models.StatusResolved
		if testItem.Status != "" {
			if status, ok = models.ParseStatus(testItem.Status); !ok {
				return i, contextutils.ErrorWithContextf("feedback %d: unknown status %q", i, testItem.Status)
			}
		}

		item, err := store.CreateFeedback(ctx, &models.FeedbackItem{
			Submitter: submitter,
			Category:  category,
			Message:   testItem.Message,
		})
		if err != nil {
			return i, contextutils.WrapErrorf(err, "failed to create feedback %d", i)
		}

		if testItem.Assignee != "" {
			assignee, err := lookup(testItem.Assignee, "assignee", i)
			if err != nil {
				return i, err
			}
			if _, err := store.UpdateAssignment(ctx, item.ID, assignee.ID, models.StatusInProgress); err != nil {
				return i, contextutils.WrapErrorf(err, "failed to assign feedback %d", i)
			}
		}

		if testItem.Resolution != "" {
			responder, err := lookup(testItem.Responder, "responder", i)
			if err != nil {
				return i, err
			}
			if status != models.StatusResolved && status != models.StatusRejected {
				return i, contextutils.ErrorWithContextf("feedback %d: a response must be resolved or rejected, got %q", i, status)
			}
			if _, err := store.RecordResponse(ctx, item.ID, testItem.Resolution, status, responder.ID, time.Now().UTC()); err != nil {
				return i, contextutils.WrapErrorf(err, "failed to respond to feedback %d", i)
			}
		}

		logger.Info(ctx, "Created feedback", map[string]interface{}{"feedback_id": item.ID, "category": string(category)})
	}
	return len(testItems), nil
}

func fixtureSubmitter(s TestSubmitter, users map[string]*models.User) (models.Submitter, error) {
	switch models.SubmitterKind(s.Kind) {
	case models.SubmitterRegistered:
		user, ok := users[s.Username]
		if !ok {
			return models.Submitter{}, contextutils.ErrorWithContextf("submitter %q is not a fixture user", s.Username)
		}
		email := ""
		if user.Email.Valid {
			email = user.Email.String
		}
		return models.RegisteredSubmitter(user.ID, user.FullName(), email, s.Phone), nil
	case models.SubmitterDirect:
		return models.DirectSubmitter(s.Name, s.Email, s.Phone), nil
	case models.SubmitterAnonymous, "":
		return models.AnonymousSubmitter(), nil
	}
	return models.Submitter{}, contextutils.ErrorWithContextf("unknown submitter kind %q", s.Kind)
}
