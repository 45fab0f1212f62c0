package gdrive

import (
	"context"

	"github.com/imroc/req/v3"
)

const changesFields = "nextPageToken,newStartPageToken,changes(fileId,file(name,parents,mimeType,trashed,size))"

// ChangesAPI wraps the changes collection: the paginated change feed and its
// start-page-token bootstrap call.
type ChangesAPI struct {
	client *req.Client
}

// StartPageToken returns the token marking the current head of the change
// feed for a resource. Used to bootstrap a cursor for a never-seen resource.
func (a *ChangesAPI) StartPageToken(ctx context.Context, resourceID string) (string, error) {
	r := a.client.R().
		SetContext(ctx).
		SetQueryParam("supportsAllDrives", "true")

	if IsSharedDriveID(resourceID) {
		r.SetQueryParam("driveId", resourceID)
	}

	var out startPageToken
	res, err := r.SetSuccessResult(&out).Get("/changes/startPageToken")
	if err := handleAPIError(res, err, "changes.getStartPageToken"); err != nil {
		return "", err
	}
	return out.StartPageToken, nil
}

// List fetches every change recorded since cursor, following nextPageToken
// until the feed is drained, and returns the batch together with the
// newStartPageToken to use as the next cursor.
func (a *ChangesAPI) List(ctx context.Context, cursor, resourceID string) ([]*Change, string, error) {
	var all []*Change
	pageToken := cursor

	for {
		r := a.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"pageToken":         pageToken,
				"supportsAllDrives": "true",
				"includeRemoved":    "true",
				"fields":            changesFields,
			})

		if IsSharedDriveID(resourceID) {
			r.SetQueryParam("driveId", resourceID)
		}

		var page changeList
		res, err := r.SetSuccessResult(&page).Get("/changes")
		if err := handleAPIError(res, err, "changes.list"); err != nil {
			return nil, "", err
		}

		all = append(all, page.Changes...)

		if page.NextPageToken == "" {
			return all, page.NewStartPageToken, nil
		}
		pageToken = page.NextPageToken
	}
}
