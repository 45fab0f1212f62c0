package gdrive

import (
	"context"

	"github.com/google/uuid"
	"github.com/imroc/req/v3"
)

// ChannelsAPI manages push notification channels: subscribing a webhook
// address to the change feed and stopping a live channel.
type ChannelsAPI struct {
	client *req.Client
}

// Watch subscribes address to the change feed starting at pageToken. The
// channel carries a shared secret token echoed back on every notification.
func (a *ChannelsAPI) Watch(ctx context.Context, pageToken, resourceID, address, secret string) (*Channel, error) {
	body := &Channel{
		ID:      uuid.NewString(),
		Type:    "web_hook",
		Address: address,
		Token:   secret,
	}

	r := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"pageToken":         pageToken,
			"supportsAllDrives": "true",
		}).
		SetBodyJsonMarshal(body)

	if IsSharedDriveID(resourceID) {
		r.SetQueryParam("driveId", resourceID)
	}

	var out Channel
	res, err := r.SetSuccessResult(&out).Post("/changes/watch")
	if err := handleAPIError(res, err, "changes.watch"); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stop terminates a live notification channel. The API returns 204 on success.
func (a *ChannelsAPI) Stop(ctx context.Context, channelID, resourceID string) error {
	body := &Channel{
		ID:         channelID,
		ResourceID: resourceID,
	}

	res, err := a.client.R().
		SetContext(ctx).
		SetBodyJsonMarshal(body).
		Post("/channels/stop")
	return handleAPIError(res, err, "channels.stop")
}
