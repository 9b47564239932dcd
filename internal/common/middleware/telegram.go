package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"nebula-miniapp/internal/common/errors"
	"nebula-miniapp/internal/common/validation"
	"nebula-miniapp/internal/domain/identity"
)

const (
	identityKey = "identity"

	InitDataHeader = "X-Telegram-Init-Data"
	PlatformHeader = "X-Telegram-Platform"
)

// TelegramIdentity resolves the viewer from Mini-App init data. Requests
// without init data continue as guest; init data that fails validation is
// rejected with 401.
func TelegramIdentity(botToken string, ttl time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		platform := validation.NormalizePlatform(firstNonEmpty(c.GetHeader(PlatformHeader), c.Query("platform")))
		raw := firstNonEmpty(c.GetHeader(InitDataHeader), c.GetHeader("init_data"), c.Query("init_data"))

		if raw == "" {
			c.Set(identityKey, identity.Guest(platform))
			c.Next()
			return
		}

		if botToken == "" {
			log.Error().Msg("TELEGRAM_BOT_TOKEN not set, cannot validate init data")
			abortWith(c, errors.New(errors.ErrCodeInternal, "Server configuration error"))
			return
		}

		if err := initdata.Validate(raw, botToken, ttl); err != nil {
			log.Debug().Err(err).Str("request_id", GetRequestID(c)).Msg("Init data validation failed")
			abortWith(c, errors.Wrap(err, errors.ErrCodeInvalidInitData, "Invalid init data"))
			return
		}

		parsed, err := initdata.Parse(raw)
		if err != nil {
			abortWith(c, errors.Wrap(err, errors.ErrCodeInvalidInitData, "Failed to parse init data"))
			return
		}

		c.Set(identityKey, fromInitData(parsed.User, platform))
		c.Next()
	}
}

func fromInitData(u initdata.User, platform string) identity.Identity {
	if u.ID == 0 {
		return identity.Guest(platform)
	}
	name := u.Username
	if name == "" {
		name = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return identity.Identity{
		UserID:    strconv.FormatInt(u.ID, 10),
		Username:  name,
		PhotoURL:  u.PhotoURL,
		Platform:  platform,
		IsPremium: u.IsPremium,
	}
}

// GetIdentity returns the identity resolved by TelegramIdentity.
func GetIdentity(c *gin.Context) (identity.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return identity.Identity{}, false
	}
	id, ok := v.(identity.Identity)
	return id, ok
}

// MustIdentity is GetIdentity falling back to a guest of unknown platform.
func MustIdentity(c *gin.Context) identity.Identity {
	if id, ok := GetIdentity(c); ok {
		return id
	}
	return identity.Guest("")
}

func abortWith(c *gin.Context, appErr *errors.AppError) {
	_ = c.Error(appErr)
	sendErrorResponse(c, appErr, zerolog.Nop())
	c.Abort()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
