package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type amountRequest struct {
	Amount   decimal.Decimal  `json:"amount" binding:"required,gt=0"`
	Optional *decimal.Decimal `json:"optional" binding:"omitempty,gt=0"`
	Receipts []string         `json:"receipts" binding:"max=2"`
	Type     string           `json:"owner_type" binding:"omitempty,oneof=customer supplier"`
}

func bindAmount(t *testing.T, body string) (amountRequest, error) {
	t.Helper()
	SetupValidator()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var req amountRequest
	err := c.ShouldBindJSON(&req)
	return req, err
}

func TestSetupValidator_DecimalAmounts(t *testing.T) {
	t.Run("positive string amount", func(t *testing.T) {
		req, err := bindAmount(t, `{"amount":"250.50"}`)
		require.NoError(t, err)
		assert.True(t, req.Amount.Equal(decimal.RequireFromString("250.50")))
	})

	t.Run("positive numeric amount", func(t *testing.T) {
		_, err := bindAmount(t, `{"amount":10}`)
		require.NoError(t, err)
	})

	t.Run("missing amount", func(t *testing.T) {
		_, err := bindAmount(t, `{}`)
		details := ValidationDetails(err)
		require.Len(t, details, 1)
		assert.Equal(t, "amount", details[0].Field)
		assert.Equal(t, "This field is required", details[0].Message)
	})

	t.Run("negative amount", func(t *testing.T) {
		_, err := bindAmount(t, `{"amount":"-5"}`)
		details := ValidationDetails(err)
		require.Len(t, details, 1)
		assert.Equal(t, "Must be greater than 0", details[0].Message)
	})

	t.Run("optional pointer amount", func(t *testing.T) {
		_, err := bindAmount(t, `{"amount":"1","optional":"0"}`)
		details := ValidationDetails(err)
		require.Len(t, details, 1)
		assert.Equal(t, "optional", details[0].Field)
	})
}

func TestValidationDetails_Messages(t *testing.T) {
	_, err := bindAmount(t, `{"amount":"1","receipts":["a","b","c"],"owner_type":"vendor"}`)
	details := ValidationDetails(err)
	require.Len(t, details, 2)

	messages := map[string]string{}
	for _, d := range details {
		messages[d.Field] = d.Message
	}
	assert.Equal(t, "Must have at most 2 items", messages["receipts"])
	assert.Equal(t, "Must be one of: customer supplier", messages["owner_type"])
}

func TestValidationDetails_NonValidatorError(t *testing.T) {
	_, err := bindAmount(t, `{"amount":`)
	require.Error(t, err)
	assert.Nil(t, ValidationDetails(err))
}
