package gate

// Discord replies. These strings are part of the observable contract:
// operators and players know them, and tests assert them verbatim.
const (
	ReplyUsage         = "❌ Please enter the code correctly."
	ReplyInvalidCode   = "❌ Invalid or expired code."
	ReplyRoleMissing   = "❌ Required role not assigned."
	ReplyNotMember     = "❌ You must be a member of the Discord server."
	ReplyNoPermission  = "❌ You do not have permission."
	ReplyNotRegistered = "❌ Not registered: "
	ReplyRemoved       = "✅ Verification removed: "
	ReplyVerified      = "✅ Verification successful! Linked to Minecraft account."
	ReplyTryAgain      = "❌ Verification failed. Please try again later."
)

// In-game messages shown to the player on the proxy
const (
	MsgAlreadyVerified    = "✅ Discord account already verified."
	MsgAllowListBypass    = "✅ Discord check skipped (allow list)."
	MsgVerified           = "✅ Discord verification successful!"
	MsgVerifyInstructions = "Discord verification required. Send the following code via DM on Discord within %s:\n!verify %s"
)

// Disconnect reasons
const (
	KickUnverified = "Verification failed. Repeated failures will result in a temporary block."
	KickBlocked    = "You are temporarily blocked due to failed Discord verification."
	KickRevoked    = "Your Discord verification has been removed."
)
