package blesvc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
)

// Peer is one central that has connected at least once.
type Peer struct {
	Address     string    `json:"address"`
	Name        string    `json:"name,omitempty"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
	Connections int       `json:"connections"`
}

// PeerStore keeps one record per central address.
type PeerStore struct {
	db  *badger.DB
	now func() time.Time
}

func NewPeerStore(db *badger.DB, now func() time.Time) *PeerStore {
	if now == nil {
		now = time.Now
	}
	return &PeerStore{db: db, now: now}
}

func peerKey(address string) []byte {
	return []byte("ble/peers/" + address)
}

// Record upserts the peer and bumps its connection counter. An empty name
// keeps whatever name was recorded before.
func (p *PeerStore) Record(address, name string) (Peer, error) {
	var peer Peer
	now := p.now()
	err := p.db.Update(func(txn *badger.Txn) error {
		key := peerKey(address)
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			peer = Peer{Address: address, FirstSeenAt: now}
		case err != nil:
			return err
		default:
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &peer)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal peer: %w", err)
			}
		}
		if name != "" {
			peer.Name = name
		}
		peer.LastSeenAt = now
		peer.Connections++
		b, err := json.Marshal(peer)
		if err != nil {
			return fmt.Errorf("failed to marshal peer: %w", err)
		}
		return txn.Set(key, b)
	})
	if err != nil {
		return Peer{}, fmt.Errorf("failed to record peer: %w", err)
	}
	return peer, nil
}

// List returns every known peer.
func (p *PeerStore) List() ([]Peer, error) {
	var peers []Peer
	err := p.db.View(func(txn *badger.Txn) error {
		iter := txn.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()
		prefix := []byte("ble/peers/")
		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			var peer Peer
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &peer)
			})
			if err != nil {
				return err
			}
			peers = append(peers, peer)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list peers: %w", err)
	}
	return peers, nil
}
