package drive

import "context"

// ContentByID fetches an item's raw bytes. It prefers the pre-authorized
// download URL from item metadata; when metadata lacks one or the download
// fails, it falls back to the generic content endpoint, which answers with
// a redirect that FetchContent follows.
func (c *Client) ContentByID(ctx context.Context, siteID, itemID string) ([]byte, string, error) {
	var meta Item
	metaURL := c.ItemURL(siteID, itemID, []string{"id", "@microsoft.graph.downloadUrl"})
	if err := c.CallJSON(ctx, metaURL, &meta); err == nil && meta.DownloadURL != "" {
		data, mime, err := c.FetchContent(ctx, meta.DownloadURL)
		if err == nil {
			return data, mime, nil
		}
		c.logger.Warn().Err(err).Str("item_id", itemID).
			Msg("download url fetch failed, falling back to content endpoint")
	}
	return c.FetchContent(ctx, c.ItemContentURL(siteID, itemID))
}
