package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
	"github.com/nayudayo/terminal-sub000/internal/core/ports"
)

// ChannelVerifier validates codes issued through the external
// Telegram channel. Codes live in the bot-managed code store; when a
// code row carries the member's Telegram id and a bot API is wired,
// channel membership is cross-checked too.
type ChannelVerifier struct {
	api       *tgbotapi.BotAPI
	codes     ports.ChannelCodeRepository
	channelID int64
	log       zerolog.Logger
}

var _ ports.ChannelVerifier = (*ChannelVerifier)(nil)

// NewChannelVerifier creates the verifier. api may be nil, which
// skips the membership cross-check (dev mode without a bot token).
func NewChannelVerifier(api *tgbotapi.BotAPI, codes ports.ChannelCodeRepository, channelID int64, baseLogger *zerolog.Logger) *ChannelVerifier {
	return &ChannelVerifier{
		api:       api,
		codes:     codes,
		channelID: channelID,
		log:       baseLogger.With().Str("component", "channel_verifier").Logger(),
	}
}

// VerifyCode claims the code for userID and, when possible, confirms
// the claimant is still a channel member. Verification verdicts come
// back as domain sentinels; anything ambiguous fails closed as
// unavailable.
func (v *ChannelVerifier) VerifyCode(ctx context.Context, userID, code string) error {
	rec, err := v.codes.Claim(ctx, code, userID)
	if err != nil {
		if errors.Is(err, domain.ErrCodeNotFound) || errors.Is(err, domain.ErrCodeClaimed) {
			return err
		}
		return fmt.Errorf("%w: code store: %v", domain.ErrVerifierUnavailable, err)
	}

	if v.api != nil && rec.TelegramID != 0 {
		member, err := v.api.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
				ChatID: v.channelID,
				UserID: rec.TelegramID,
			},
		})
		if err != nil {
			v.log.Error().Err(err).Int64("telegram_id", rec.TelegramID).Msg("Membership check failed")
			return fmt.Errorf("%w: telegram: %v", domain.ErrVerifierUnavailable, err)
		}
		switch member.Status {
		case "creator", "administrator", "member":
		default:
			v.log.Warn().Int64("telegram_id", rec.TelegramID).Str("status", member.Status).Msg("Code holder left the channel")
			return domain.ErrCodeNotFound
		}
	}

	v.log.Info().Str("user_id", userID).Msg("Channel code verified")
	return nil
}
