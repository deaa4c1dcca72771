//go:build e2e

package e2e

import (
	"regexp"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type E2ETestSuite struct {
	suite.Suite
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	expect  playwright.PlaywrightAssertions
}

func (suite *E2ETestSuite) SetupSuite() {
	pw, err := playwright.Run()
	require.NoError(suite.T(), err, "could not launch playwright")
	suite.pw = pw

	browser, err := pw.Chromium.Launch()
	require.NoError(suite.T(), err, "could not launch chromium")
	suite.browser = browser

	suite.expect = playwright.NewPlaywrightAssertions()
}

func (suite *E2ETestSuite) TearDownSuite() {
	if suite.browser != nil {
		suite.browser.Close()
	}
	if suite.pw != nil {
		suite.pw.Stop()
	}
}

// Each test gets a fresh context, so no session cookie leaks between tests.
func (suite *E2ETestSuite) SetupTest() {
	bctx, err := suite.browser.NewContext()
	require.NoError(suite.T(), err, "could not create browser context")
	page, err := bctx.NewPage()
	require.NoError(suite.T(), err, "could not create page")
	suite.page = page
}

func (suite *E2ETestSuite) TearDownTest() {
	if suite.page != nil {
		suite.page.Context().Close()
	}
}

func (suite *E2ETestSuite) goTo(path string) {
	_, err := suite.page.Goto(appURL + path)
	require.NoError(suite.T(), err, "could not navigate to %s", path)
}

func (suite *E2ETestSuite) login(username, password string) {
	suite.goTo("/login")
	require.NoError(suite.T(), suite.page.Locator("input[name=username]").Fill(username))
	require.NoError(suite.T(), suite.page.Locator("input[name=password]").Fill(password))
	require.NoError(suite.T(), suite.page.Locator("form[action='/login'] button[type=submit]").Click())
}

func (suite *E2ETestSuite) TestLoginRequiredAndWrongPassword() {
	suite.goTo("/expenses")
	err := suite.expect.Page(suite.page).ToHaveURL(regexp.MustCompile(`/login\?next=%2Fexpenses$`))
	require.NoError(suite.T(), err, "anonymous visit was not redirected to login")

	suite.login(adminUser, "not-the-password")
	err = suite.expect.Locator(suite.page.Locator(".form-error")).ToContainText("Please enter a correct username and password")
	require.NoError(suite.T(), err, "login error not shown")
}

func (suite *E2ETestSuite) TestExpenseFlow() {
	suite.login(adminUser, adminPassword)
	err := suite.expect.Locator(suite.page.Locator("h1").First()).ToHaveText("Dashboard")
	require.NoError(suite.T(), err, "did not land on the dashboard after login")

	suite.goTo("/expenses/add")
	require.NoError(suite.T(), suite.page.Locator("input[name=amount]").Fill("12.50"))
	_, err = suite.page.Locator("select[name=category]").SelectOption(playwright.SelectOptionValues{
		Labels: &[]string{"Food"},
	})
	require.NoError(suite.T(), err, "failed to select category")
	require.NoError(suite.T(), suite.page.Locator("input[name=date]").Fill("2024-01-15"))
	require.NoError(suite.T(), suite.page.Locator("textarea[name=note]").Fill("Lunch Test"))
	require.NoError(suite.T(), suite.page.Locator("form button[type=submit]").Last().Click())

	err = suite.expect.Locator(suite.page.Locator(".flash")).ToHaveText("Expense added.")
	require.NoError(suite.T(), err, "flash message missing")

	row := suite.page.Locator("table.records tbody tr").Filter(playwright.LocatorFilterOptions{HasText: "Lunch Test"})
	err = suite.expect.Locator(row).ToHaveCount(1)
	require.NoError(suite.T(), err, "expense row missing")
	err = suite.expect.Locator(row.Locator(".amount")).ToHaveText("$12.50")
	require.NoError(suite.T(), err, "amount mismatch")

	require.NoError(suite.T(), row.Locator("a", playwright.LocatorLocatorOptions{HasText: "Delete"}).Click())
	require.NoError(suite.T(), suite.page.Locator("main form button[type=submit]").Click())
	err = suite.expect.Locator(suite.page.Locator(".flash")).ToHaveText("Expense deleted.")
	require.NoError(suite.T(), err, "delete flash missing")
}

func (suite *E2ETestSuite) TestLogout() {
	suite.login(adminUser, adminPassword)
	require.NoError(suite.T(), suite.page.Locator("form[action='/logout'] button").Click())

	err := suite.expect.Locator(suite.page.Locator(".flash")).ToHaveText("You have been signed out.")
	require.NoError(suite.T(), err, "sign out flash missing")

	suite.goTo("/dashboard")
	err = suite.expect.Page(suite.page).ToHaveURL(regexp.MustCompile(`/login`))
	require.NoError(suite.T(), err, "dashboard reachable after sign out")
}

func TestE2ESuite(t *testing.T) {
	suite.Run(t, new(E2ETestSuite))
}
