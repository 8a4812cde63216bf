package meshnode

import (
	"github.com/1ureka/meshnode/internal/account"
	"github.com/1ureka/meshnode/internal/envelope"
	"github.com/1ureka/meshnode/internal/logging"
)

// AccountChannel is a channel addressed to a registered account reachable
// through a specific signer (device). Multiple AccountChannels may share a
// remote account address but differ by signer.
type AccountChannel struct {
	*Base
	localAccount  account.Address
	localSigner   account.Address
	remoteAccount account.Address
	remoteSigner  account.Address
}

// NewAccountChannel constructs an account-addressed channel.
func NewAccountChannel(localAccount, localSigner, remoteAccount, remoteSigner account.Address, cfg Config, polite, initiatedByUs bool) *AccountChannel {
	ac := &AccountChannel{
		localAccount:  localAccount,
		localSigner:   localSigner,
		remoteAccount: remoteAccount,
		remoteSigner:  remoteSigner,
	}
	ac.Base = NewBase(ac, cfg, polite, initiatedByUs)
	return ac
}

func (a *AccountChannel) LocalParty() envelope.Party {
	return envelope.Party{Account: a.localAccount.String(), Signer: a.localSigner}
}

func (a *AccountChannel) RemoteParty() envelope.Party {
	return envelope.Party{Account: a.remoteAccount.String(), Signer: a.remoteSigner}
}

// Admit accepts envelopes whose sender account and signer both match the
// remote identity this channel was opened for.
func (a *AccountChannel) Admit(env envelope.Envelope) bool {
	senderAccount, err := account.ParseAddress(env.Sender.Account)
	if err != nil {
		return false
	}
	return senderAccount.Equal(a.remoteAccount) && env.Sender.Signer.Equal(a.remoteSigner)
}

func (a *AccountChannel) LogFields() logging.Fields {
	return logging.Fields{
		"kind":          "account",
		"localAccount":  a.localAccount.String(),
		"remoteAccount": a.remoteAccount.String(),
		"remoteSigner":  a.remoteSigner.String(),
	}
}

// Key returns the registry key ChannelManager uses for account channels.
func (a *AccountChannel) Key() AccountKey {
	return AccountKey{Account: a.remoteAccount, Signer: a.remoteSigner}
}
