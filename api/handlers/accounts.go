package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/mailfold/mailfold/interfaces"
	mailerrors "github.com/mailfold/mailfold/internal/errors"
	"github.com/mailfold/mailfold/internal/models"
	"github.com/mailfold/mailfold/internal/tracing"
	"github.com/mailfold/mailfold/internal/utils"
)

// ListAccounts returns the sync status of every registered account
func ListAccounts(engine interfaces.SyncEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, engine.Status())
	}
}

// addAccountRequest is the POST body for account registration. The password
// is accepted here and only here; models.Account hides it from every JSON
// response.
type addAccountRequest struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Server   string `json:"server"`
	Port     int    `json:"port"`
	TLS      bool   `json:"tls"`
	Username string `json:"username"`
	Password string `json:"password"`
	Mailbox  string `json:"mailbox"`
}

// AddAccount registers a new account and starts syncing it
func AddAccount(engine interfaces.SyncEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "AddAccount", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request addAccountRequest
		err := c.ShouldBindJSON(&request)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		account := models.Account{
			ID:       request.ID,
			Label:    request.Label,
			Server:   request.Server,
			Port:     request.Port,
			TLS:      request.TLS,
			Username: request.Username,
			Password: request.Password,
			Mailbox:  request.Mailbox,
		}
		if account.ID == "" {
			account.ID = utils.GenerateNanoIDWithPrefix("acct", 16)
		}
		tracing.TagAccount(span, account.ID)

		err = engine.AddAccount(ctx, &account)
		if err != nil {
			tracing.TraceErr(span, err)
			if errors.Is(err, mailerrors.ErrAccountExists) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"status": "account added", "id": account.ID})
	}
}

// RemoveAccount stops syncing an account and forgets it
func RemoveAccount(engine interfaces.SyncEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "RemoveAccount", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id := c.Param("id")
		tracing.TagAccount(span, id)

		if err := engine.RemoveAccount(ctx, id); err != nil {
			tracing.TraceErr(span, err)
			if errors.Is(err, mailerrors.ErrAccountNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "account removed", "id": id})
	}
}
