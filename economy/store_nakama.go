package economy

import (
	"context"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/pkg/errors"
)

const (
	walletsStorageCollection = "wallets"
	walletsStorageListLimit  = 100
)

// NakamaStore keeps one storage object per wallet: collection "wallets", key = currency ID,
// owned by the wallet owner.
type NakamaStore struct {
	nk         runtime.NakamaModule
	collection string
}

func NewNakamaStore(nk runtime.NakamaModule, collection string) *NakamaStore {
	if collection == "" {
		collection = walletsStorageCollection
	}
	return &NakamaStore{nk: nk, collection: collection}
}

func (s *NakamaStore) Load(ctx context.Context, owner, currencyID string) (*BalanceRecord, error) {
	objects, err := s.nk.StorageRead(ctx, []*runtime.StorageRead{
		{
			Collection: s.collection,
			Key:        currencyID,
			UserID:     owner,
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "read wallet %s/%s", owner, currencyID)
	}
	if len(objects) == 0 || objects[0] == nil || objects[0].Value == "" {
		return nil, nil
	}
	var record BalanceRecord
	if err := json.Unmarshal([]byte(objects[0].Value), &record); err != nil {
		return nil, errors.Wrapf(err, "decode wallet %s/%s", owner, currencyID)
	}
	record.Version = objects[0].Version
	return &record, nil
}

// Save writes the record only if the stored version still matches the one it was loaded at. A
// record that was never saved must not exist yet. On success the record takes the new version.
func (s *NakamaStore) Save(ctx context.Context, owner, currencyID string, record *BalanceRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "encode wallet")
	}
	version := record.Version
	if version == "" {
		version = "*"
	}
	acks, err := s.nk.StorageWrite(ctx, []*runtime.StorageWrite{
		{
			Collection:      s.collection,
			Key:             currencyID,
			UserID:          owner,
			Value:           string(data),
			Version:         version,
			PermissionRead:  runtime.STORAGE_PERMISSION_OWNER_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		},
	})
	if err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return errors.Wrapf(ErrBalanceConflict, "write wallet %s/%s", owner, currencyID)
		}
		return errors.Wrapf(err, "write wallet %s/%s", owner, currencyID)
	}
	if len(acks) > 0 && acks[0] != nil {
		record.Version = acks[0].Version
	}
	return nil
}

func (s *NakamaStore) List(ctx context.Context, owner string) (map[string]*BalanceRecord, error) {
	result := make(map[string]*BalanceRecord)
	cursor := ""
	for {
		objects, next, err := s.nk.StorageList(ctx, "", owner, s.collection, walletsStorageListLimit, cursor)
		if err != nil {
			return nil, errors.Wrapf(err, "list wallets of %s", owner)
		}
		for _, object := range objects {
			var record BalanceRecord
			if err := json.Unmarshal([]byte(object.Value), &record); err != nil {
				return nil, errors.Wrapf(err, "decode wallet %s/%s", owner, object.Key)
			}
			result[object.Key] = &record
		}
		if next == "" {
			return result, nil
		}
		cursor = next
	}
}

func (s *NakamaStore) Close() error {
	return nil
}
