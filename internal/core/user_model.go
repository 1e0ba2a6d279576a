package core

import (
	"context"
	"time"
)

// User is an operator of a store. Identity is issued outside this service;
// users are kept for display names and the owner flag.
type User struct {
	ID        int       `json:"id"`
	StoreID   int       `json:"store_id"`
	StoreName string    `json:"store_name"`
	Name      string    `json:"name"`
	IsOwner   bool      `json:"is_owner"`
	CreatedAt time.Time `json:"created_at"`
}

// Actor returns the scope this user acts in.
func (u User) Actor() Actor {
	return Actor{StoreID: u.StoreID, OperatorID: u.ID, IsOwner: u.IsOwner}
}

// UserService provides operator lookup and store bootstrap.
type UserService interface {
	// GetByID returns a user by primary key within the given store.
	GetByID(ctx context.Context, storeID, userID int) (*User, error)

	// EnsureStoreOwner returns the owner of the store named storeName,
	// creating the store and an owner called ownerName when none exists.
	EnsureStoreOwner(ctx context.Context, storeName, ownerName string) (*User, error)
}
