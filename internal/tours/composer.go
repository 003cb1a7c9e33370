package tours

import "fmt"

const responseTemplate = `Hello! Thank you for booking your tour with %[1]s.

Your tour guide %[2]s will meet you at %[3]s at %[4]s. Look for %[5]s.

If you need to reach your guide directly, you can contact them at: %[6]s

%[7]s

We look forward to showing you an amazing time! If you have any questions before your tour, feel free to reach out.

PS - We have many more tours available! Ask us about our other offerings including food tours, historical walks, and specialty experiences.

Have a wonderful day!
%[1]s Team`

// ComposeResponse renders the guest-facing confirmation for a preset. A nil
// preset yields the short generic acknowledgement.
func ComposeResponse(preset *Preset, companyName string) string {
	if preset == nil {
		return fmt.Sprintf("Thank you for booking with %s! We'll send you tour details shortly.", companyName)
	}
	description := preset.Description
	if description == "" {
		description = "We're excited to share our city with you!"
	}
	return fmt.Sprintf(responseTemplate,
		companyName,
		preset.GuideName,
		preset.MeetingLocation,
		preset.TimeSlot,
		preset.IdentifiableObject,
		preset.GuidePhoneNumber,
		description,
	)
}
