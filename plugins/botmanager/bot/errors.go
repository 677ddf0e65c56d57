package bot

import (
	"errors"
	"fmt"
)

var (
	// ErrBotNotExists is returned when no bot with the name is registered.
	ErrBotNotExists = errors.New("bot does not exist")
	// ErrBotAlreadyExists is returned when creating a bot under a name that
	// is taken.
	ErrBotAlreadyExists = errors.New("bot already exists")
	// ErrBotOnline is returned when spawning a bot that is online.
	ErrBotOnline = errors.New("bot is online")
	// ErrBotOffline is returned when killing or running actions of a bot
	// that is offline.
	ErrBotOffline = errors.New("bot is offline")
	// ErrBotAlreadySaved is returned when saving a bot that is saved.
	ErrBotAlreadySaved = errors.New("bot already saved")
	// ErrBotNotSaved is returned when deleting a bot that is not saved, or
	// when spawning an unknown bot without a player to take a location from.
	ErrBotNotSaved = errors.New("bot not saved")
)

// BotError is an error about the state of the bot Name. Kind is one of the
// Err* sentinels above, which errors.Is matches against.
type BotError struct {
	Kind error
	Name string
}

func (e *BotError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Name)
}

func (e *BotError) Unwrap() error { return e.Kind }

func botError(kind error, name string) error {
	return &BotError{Kind: kind, Name: name}
}

// IllegalListIndexError is returned when a list page outside of [0, max] is
// requested.
type IllegalListIndexError struct {
	Index, Max int
}

func (e IllegalListIndexError) Error() string {
	return fmt.Sprintf("illegal list index %d (max %d)", e.Index, e.Max)
}

// IllegalActionIndexError is returned when an action index is out of range.
type IllegalActionIndexError struct {
	Index int
}

func (e IllegalActionIndexError) Error() string {
	return fmt.Sprintf("illegal action index %d", e.Index)
}

// IllegalTagIndexError is returned when a tag index is out of range.
type IllegalTagIndexError struct {
	Index int
}

func (e IllegalTagIndexError) Error() string {
	return fmt.Sprintf("illegal tag index %d", e.Index)
}

// TagNotExistsError is returned when no bot carries the tag.
type TagNotExistsError struct {
	Tag string
}

func (e TagNotExistsError) Error() string {
	return fmt.Sprintf("no bot is tagged %q", e.Tag)
}

// IllegalNameError is returned for names that are not valid player names
// after normalisation.
type IllegalNameError struct {
	Name string
}

func (e IllegalNameError) Error() string {
	return fmt.Sprintf("illegal bot name %q", e.Name)
}
