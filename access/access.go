// Package access implements owner-controlled authorization: a single owner
// identity plus an allowlist of accounts the owner has authorized.
package access

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/payroute/libpayroute-go/chain"
)

// OwnershipTransferred is emitted when the owner changes.
type OwnershipTransferred struct {
	PreviousOwner common.Address
	NewOwner      common.Address
}

// EventName implements chain.Event.
func (OwnershipTransferred) EventName() string { return "OwnershipTransferred" }

// AuthorizedCallerUpdated is emitted when an account is added to or removed from the allowlist.
type AuthorizedCallerUpdated struct {
	Account    common.Address
	Authorized bool
}

// EventName implements chain.Event.
func (AuthorizedCallerUpdated) EventName() string { return "AuthorizedCallerUpdated" }

// Controller guards the privileged entry points of one contract.
type Controller struct {
	address common.Address

	mu      sync.RWMutex
	owner   common.Address
	allowed map[common.Address]bool
}

// NewController creates a controller for the contract at address, owned by owner.
func NewController(address, owner common.Address) (*Controller, error) {
	if owner == (common.Address{}) {
		return nil, fmt.Errorf("%w: owner", ErrZeroAddress)
	}
	return &Controller{
		address: address,
		owner:   owner,
		allowed: make(map[common.Address]bool),
	}, nil
}

// Owner returns the current owner.
func (c *Controller) Owner() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner
}

// RequireOwner fails unless caller is the owner.
func (c *Controller) RequireOwner(caller common.Address) error {
	if caller != c.Owner() {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller.Hex())
	}
	return nil
}

// IsAuthorized reports whether account is on the allowlist.
func (c *Controller) IsAuthorized(account common.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.allowed[account]
}

// RequireAuthorized fails unless caller is on the allowlist.
func (c *Controller) RequireAuthorized(caller common.Address) error {
	if !c.IsAuthorized(caller) {
		return fmt.Errorf("%w: %s is not an authorized caller", ErrUnauthorized, caller.Hex())
	}
	return nil
}

// TransferOwnership hands the owner role to newOwner. Only the owner may call.
func (c *Controller) TransferOwnership(call *chain.Call, newOwner common.Address) error {
	if err := c.RequireOwner(call.Sender); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("%w: new owner", ErrZeroAddress)
	}

	c.mu.Lock()
	prev := c.owner
	c.owner = newOwner
	c.mu.Unlock()

	call.OnRevert(func() {
		c.mu.Lock()
		c.owner = prev
		c.mu.Unlock()
	})
	call.Emit(c.address, OwnershipTransferred{PreviousOwner: prev, NewOwner: newOwner})
	return nil
}

// SetAuthorized adds or removes account from the allowlist. Only the owner may call.
func (c *Controller) SetAuthorized(call *chain.Call, account common.Address, authorized bool) error {
	if err := c.RequireOwner(call.Sender); err != nil {
		return err
	}
	if account == (common.Address{}) {
		return fmt.Errorf("%w: account", ErrZeroAddress)
	}

	c.mu.Lock()
	prev := c.allowed[account]
	c.setLocked(account, authorized)
	c.mu.Unlock()

	call.OnRevert(func() {
		c.mu.Lock()
		c.setLocked(account, prev)
		c.mu.Unlock()
	})
	call.Emit(c.address, AuthorizedCallerUpdated{Account: account, Authorized: authorized})
	return nil
}

func (c *Controller) setLocked(account common.Address, authorized bool) {
	if authorized {
		c.allowed[account] = true
	} else {
		delete(c.allowed, account)
	}
}
