package bot

// =============================================================================
// General messages
// =============================================================================

const (
	MsgUnexpectedErr = `Unexpected error: %s`
	MsgStartPrompt   = `
		Send me a photo of an outfit you like, or describe what you are looking for.

		Add a caption or a text message to describe it, then use /recommend.
	`
	MsgVersionInfo = "Version: %s\nBuilt: %s"
)

// =============================================================================
// Image and description messages
// =============================================================================

const (
	MsgImageReceived       = "📷 Image received: %s\n\nAdd a description or send /recommend."
	MsgImageCleared        = "Image removed."
	MsgNotAnImage          = "That file is not an image. Send a photo or an image file."
	MsgImageDownloadFailed = "Could not download the image: %s"
	MsgDescriptionSet      = "📝 Description set. Send /recommend to get recommendations."
)

// =============================================================================
// Submission and results messages
// =============================================================================

const (
	MsgUploading       = "Uploading..."
	MsgBusy            = "Still uploading, please wait."
	MsgSubmissionError = "⚠️ %s"
	MsgNoProducts      = "No matching products found."
	MsgResultsExpired  = "These results are no longer current."
)

// =============================================================================
// Admin command messages
// =============================================================================

const (
	MsgAdminUsage           = "Usage:\n<code>/admin users add &lt;user_id&gt;</code>\n<code>/admin users remove &lt;user_id&gt;</code>\n<code>/admin users list</code>"
	MsgAdminUserAddUsage    = "Usage: <code>/admin users add &lt;user_id&gt;</code>"
	MsgAdminUserRemoveUsage = "Usage: <code>/admin users remove &lt;user_id&gt;</code>"
	MsgAdminUserInvalidID   = "Invalid user ID. Give a number."
	MsgAdminUserAdded       = "✅ User <code>%d</code> added."
	MsgAdminUserRemoved     = "✅ User <code>%d</code> removed."
	MsgAdminNoUsers         = "No allowed users."
	MsgAdminAllowedUsers    = "<b>Allowed users:</b>\n"
)

// =============================================================================
// Buttons
// =============================================================================

const (
	BtnCollapsed = "▸ %d. %s"
	BtnExpanded  = "▾ %d. %s"
)
