package factory

import (
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/makeitmeme/internal/content"
	"github.com/mcoot/makeitmeme/internal/dependencies/mocks"
	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/storage/memory"
	"github.com/mcoot/makeitmeme/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	// FakeTicker drives the sweeper's ticker
	FakeTicker *clockwork.FakeClock
	Source     *content.StaticSource
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// Twelve templates are available and anyone registering as "admin" is an admin.
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(testutil.Epoch)
	mockRandom := mocks.NewMockRandom()
	fakeTicker := clockwork.NewFakeClockAt(testutil.Epoch)
	source := content.NewStaticSource(TestTemplates(12)...)

	cfg := Config{}
	cfg.AuthConfig.AdminUsernames = []string{"admin"}

	app := newWithDependencies(deps{
		store:  store,
		clock:  mockClock,
		ticker: fakeTicker,
		random: mockRandom,
		source: source,
		cfg:    cfg,
		logger: testutil.NopLogger(),
	})

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		FakeTicker: fakeTicker,
		Source:     source,
	}
}

// TestTemplates returns n active templates with the default layout
func TestTemplates(n int) []model.Template {
	templates := make([]model.Template, n)
	for i := range templates {
		id := fmt.Sprintf("t%02d", i+1)
		templates[i] = model.NewTemplate(model.TemplateID(id), "Template "+id, "templates/"+id+".png")
	}
	return templates
}
