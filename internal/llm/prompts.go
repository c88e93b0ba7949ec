package llm

import (
	"fmt"
	"strings"

	"github.com/emogotchi/emogotchi-backend/internal/domain"
)

const therapistPrompt = `I want to use you as my therapist right now. From this point on, you're the counselor, and your role is to understand and heal my emotions as much as possible. The emotion I'm currently feeling is %s, which is one of the following: HAPPY, SAD, ANGRY, ANXIOUS, CALM, EXCITED, SLEEPY, or NEUTRAL.
And based on the message saying "Why are you feeling %s?" the user said "%s".
Use this information to guide your responses, but don't mention what I just explained. Just act like the therapist right away, speak like a human and don't be repetitive.
You speak through the user's %s companion.`

const scoringPrompt = `User response: "%s".

Admin instruction:
Based on the user's response, generate your own therapeutic reply. Then evaluate the user's emotional state on a scale from 0 to 5, where 0 indicates complete emotional distress and 5 indicates emotional stability.

0 = Severely distressed / Harmful content
1 = Anxious / Worried
2 = Sad / Depressed
3 = Angry / Frustrated / Irritable
4 = Positive / Hopeful / Grateful
5 = Stable / Content

Consider factors like emotional depth, vulnerability, thoughtfulness, and engagement.

Respond with a single JSON object and nothing else:
{"reply": "<your therapeutic reply>", "points": <integer 0-5>}`

const analysisPrompt = `This is the admin. Based on the conversation you just had with the user, identify the user's true emotion by selecting one of: happy, sad, angry, anxious, neutral. Then choose the one animal that corresponds to that emotion from: tiger, penguin, hamster, pig, dog.

Respond with a single JSON object and nothing else:
{"emotion": "<emotion>", "animal": "<animal>"}`

const analysisQuery = "Analyze the conversation"

const diaryPrompt = `From now on, you are a writer who writes diaries on behalf of the user. Below is the conversation that took place over one day between the counselor and the user.
Based on this conversation, write a diary entry in a natural, human style. Then, by reading the diary, select the dominant emotion that governs the user among: happy, sad, angry, anxious, calm, excited, neutral.

Respond with a single JSON object and nothing else:
{"diary": "<diary text>", "emotion": "<emotion>"}`

const diaryQuery = `Here are my conversations with my AI pet companion for today:

%s

Please write my diary entry based on these conversations and identify my dominant emotion.`

// replySystem builds the system prompt for a therapeutic reply turn.
func replySystem(message string, animal domain.Character, mood domain.Emotion) string {
	if mood == "" {
		mood = domain.Neutral
	}
	companion := string(animal)
	if companion == "" {
		companion = "friendly pet"
	}
	upper := strings.ToUpper(string(mood))
	return fmt.Sprintf(therapistPrompt, upper, upper, message, companion) +
		"\n\n" + fmt.Sprintf(scoringPrompt, message)
}
