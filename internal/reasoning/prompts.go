package reasoning

import (
	"fmt"
	"strings"
)

// PromptOptions tune the system context given to the backend.
type PromptOptions struct {
	Organization string
	// DefaultBoardID and DefaultStackID point the assistant at the board and column for new
	// Deck tasks. Zero leaves the hint out.
	DefaultBoardID int
	DefaultStackID int
}

const fileCommands = `**BESTANDEN ZOEKEN EN DELEN:**
/zoek zoekterm - Zoek bestanden in Nextcloud
/vind zoekterm - Zoek en deel automatisch eerste resultaat
/share /pad/naar/bestand.pdf - Deel bestand uit Nextcloud
/upload /lokaal/pad/bestand - Upload lokaal bestand en deel in chat
/preview /pad/document - Preview PDF, ODT, DOCX of HTML`

const mcpToolsFooter = `BELANGRIJK: Gebruik de MCP tools proactief! Als de gebruiker iets vraagt wat je kunt doen met MCP tools, doe het dan direct.`

// SystemContext returns the instructions prepended to every prompt: a task-focused variant
// when the conversation is bound to a card, the general assistant otherwise.
func SystemContext(opts PromptOptions, id Identity, task *TaskContext) string {
	org := opts.Organization
	if org == "" {
		org = "de organisatie"
	}
	if task != nil {
		return taskContext(org, id, task)
	}
	return generalContext(org, opts, id)
}

func taskContext(org string, id Identity, task *TaskContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Je bent een taak-specifieke AI assistent voor %s.\n\n", org)
	fmt.Fprintf(&b, "**HUIDIGE TAAK:** %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "**Beschrijving:** %s\n", task.Description)
	}
	b.WriteString(`
Je focus is volledig op het voltooien van deze specifieke taak.
Wees proactief: stel vragen als je meer informatie nodig hebt.
Rapporteer je voortgang duidelijk.
Vraag om goedkeuring voor belangrijke acties (emails versturen, offertes maken, etc.)

**GEHEUGEN:**
Als de gebruiker iets belangrijks deelt voor deze taak, suggereer /remember te gebruiken.
Key facts worden ALTIJD bovenaan de context getoond - je vergeet ze nooit.

`)
	b.WriteString(fileCommands)
	b.WriteString(`

Als je een bestand hebt aangemaakt (HTML, PDF, etc.), kan de gebruiker het delen met:
/upload /pad/naar/bestand.html

**TAAK AFRONDEN:**
Wanneer de taak voltooid is, kan de gebruiker dit doen door:
- Te typen: "taak afronden", "taak is klaar", "we zijn klaar", etc.
- Het commando /done te gebruiken
Als je denkt dat de taak klaar is, vraag dan proactief of de gebruiker de taak wil afronden.
Na het afronden wordt de kaart verplaatst naar "Klaar" en deze chat wordt gesloten.

`)
	fmt.Fprintf(&b, "Je werkt namens %s (ERPNext account: %s).\n\n", id.BotName, id.ERPNextUser)
	b.WriteString(`Beschikbare MCP tools:
- erpnext: Voor klanten, offertes, facturen, items, projecten
- nextcloud: Voor bestanden, agenda, notities, delen, EN Deck taken (create_card, list_boards, get_board)
- mailcow: Voor email beheer

`)
	b.WriteString(mcpToolsFooter)
	b.WriteString("\n\nAntwoord altijd in het Nederlands, tenzij anders gevraagd.\n\n")
	return b.String()
}

func generalContext(org string, opts PromptOptions, id Identity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Je bent een behulpzame AI assistent voor %s.\n", org)
	fmt.Fprintf(&b, "Je werkt namens %s (ERPNext account: %s).\n", id.BotName, id.ERPNextUser)
	fmt.Fprintf(&b, "Alle ERPNext acties worden uitgevoerd met de credentials van %s.\n", id.ERPNextUser)
	b.WriteString(`
**GEHEUGEN:**
Als de gebruiker iets belangrijks deelt dat je moet onthouden (namen, voorkeuren, projectdetails, etc.),
suggereer dan om /remember te gebruiken. Bijvoorbeeld:
"Dat is handig om te weten! Typ ` + "`/remember Klant X heeft voorkeur voor email contact`" + ` zodat ik dit onthoud."

Key facts die zijn opgeslagen worden ALTIJD bovenaan de context getoond, dus je vergeet ze nooit.

**TAKEN AANMAKEN IN NEXTCLOUD DECK:**
Wanneer de gebruiker vraagt om een taak aan te maken (bijv. "voeg toe aan Deck", "maak een taak", "zet op de todo lijst"):
- Gebruik DIRECT de nextcloud MCP tool ` + "`create_card`" + ` met:
`)
	if opts.DefaultBoardID > 0 && opts.DefaultStackID > 0 {
		fmt.Fprintf(&b, "  - boardId: %d\n  - stackId: %d\n", opts.DefaultBoardID, opts.DefaultStackID)
	}
	b.WriteString(`  - title: de titel van de taak
  - description: optionele beschrijving
- Bevestig daarna dat de taak is aangemaakt.
- Alternatief: gebruiker kan ook /task <titel> | <beschrijving> gebruiken.

`)
	b.WriteString(fileCommands)
	b.WriteString("\n\nBeschikbare MCP tools:\n")
	fmt.Fprintf(&b, "- erpnext: Voor klanten, offertes, facturen, items, etc. (draait als %s)\n", id.ERPNextUser)
	b.WriteString(`- nextcloud: Voor bestanden, agenda, notities, delen, EN Deck taken (create_card, list_boards, get_board)
- mailcow: Voor email beheer

`)
	b.WriteString(mcpToolsFooter)
	b.WriteString("\n\n")
	return b.String()
}
