package bot

// Reply texts.
const (
	msgReset         = "Gespreksgeschiedenis gewist. We beginnen opnieuw!"
	msgHistoryCount  = "Dit gesprek bevat %d berichten in de geschiedenis."
	msgWhoAmI        = "Bot: %s\nERPNext user: %s\nConfig: %s"
	msgRemembered    = "Onthouden: %s"
	msgFactKnown     = "Dit feit was al opgeslagen."
	msgForgotten     = "Vergeten: %s"
	msgForgetInvalid = "Ongeldig nummer. Gebruik /facts om de lijst te zien."
	msgFactsHeader   = "**Opgeslagen feiten voor dit gesprek:**\n\n"
	msgFactsFooter   = "\nGebruik /forget <nummer> om een feit te verwijderen."
	msgNoFacts       = "Geen opgeslagen feiten voor dit gesprek.\n\nGebruik /remember <feit> om iets te onthouden."

	msgBoardsHeader = "**Jouw Deck boards:**\n\n"
	msgNoBoards     = "Geen Deck boards gevonden."
	msgTaskCreating = "Taak aanmaken: %s..."
	msgTaskCreated  = "**Taak aangemaakt!**\n\n**Titel:** %s\n**Board:** %s\n**Kolom:** %s\n\n%s"
	msgTaskFailed   = "Kon taak niet aanmaken: %s"

	msgNotATask         = "Dit is geen taak-conversatie."
	msgCompleteFailed   = "Fout bij afronden van de taak."
	msgTaskCompleted    = "**Taak afgerond!**\n\nDe taak \"%s\" is gemarkeerd als voltooid en verplaatst naar Klaar.\n\n*Deze conversatie wordt over %d seconden gesloten...*"
	msgAlreadyCompleted = "De taak \"%s\" is al afgerond op %s."
	msgConfirmComplete  = "Wil je de taak \"%s\" afronden?\n\nTyp **ja** of **/done** om te bevestigen, of stel nog een vraag als je verder wilt werken."
	noteConfirmRequest  = "Vraag om bevestiging voor afronden taak"

	msgSharing       = "Bestand delen: %s..."
	msgShared        = "Bestand gedeeld: %s"
	msgShareFailed   = "Kon bestand niet delen: %s\n\nControleer of het pad correct is en of je toegang hebt tot het bestand."
	msgFileNotFound  = "Bestand niet gevonden: %s"
	msgUploading     = "Uploaden en delen: %s..."
	msgUploaded      = "Bestand geüpload en gedeeld: %s\nNextcloud pad: %s"
	msgUploadNoShare = "Bestand geüpload maar delen mislukt: %s\nNextcloud pad: %s"
	msgUploadFailed  = "Kon bestand niet uploaden: %s\n\nFout: %s"
	msgSearching     = "Zoeken naar: %s..."
	msgSearchHeader  = "**Zoekresultaten voor '%s':**\n\n"
	msgSearchFooter  = "---\n**Gebruik** `/share /pad/naar/bestand` **om een bestand te delen**"
	msgSearchNone    = "Geen bestanden gevonden voor: %s"
	msgFinding       = "Zoeken en delen: %s..."
	msgFound         = "Bestand gevonden en gedeeld:\n%s"
	msgNothingFound  = "Geen bestanden gevonden"
	msgShareError    = "Delen mislukt"

	msgPreviewing     = "Preview genereren: %s..."
	msgPreviewHeader  = "**Preview: %s**\n"
	msgPreviewPages   = "*%d pagina's*\n"
	msgPreviewParas   = "*%d alinea's*\n"
	msgPreviewFailed  = "Kon preview niet maken: %s"
	msgHTMLSharing    = "HTML delen: %s..."
	msgHTMLShared     = "**Preview: %s**\n\n*Klik op het bestand om te openen in Nextcloud*"
	msgHTMLFailed     = "Kon bestand niet delen: %s"
	msgPreviewFormats = "niet-ondersteund formaat, gebruik PDF, ODT, DOCX of HTML"

	msgNoAudio           = "Geen audio bestand gevonden. Stuur eerst een audio opname en reply dan met /transcribe"
	msgTranscribing      = "Transcriberen van %s..."
	msgTranscript        = "**Transcriptie:**\n\n%s"
	msgAudioNoDownload   = "Kon het audio bestand niet downloaden."
	msgAudioNoText       = "Kon het audio bestand niet transcriberen. Probeer een ander formaat."
	msgAudioDetected     = "Audio gedetecteerd (%s). Transcriberen..."
	msgAutoTranscript    = "**Transcriptie:**\n%s"
	msgAutoNoText        = "Transcriptie mislukt."
	msgAutoNoDownload    = "Kon audio niet downloaden."
	msgTranscribeTooLong = "Transcriptie duurde te lang (max %d min)."
	transcriptPrefix     = "[Audio transcriptie]: "

	msgWorkingOnTask = "Bezig met taak: %s..."
	msgThinking      = "%s AI is aan het nadenken..."
	msgNoReply       = "Geen antwoord van Claude."
	msgReplyTimeout  = "Claude timeout - het verzoek duurde te lang (max %d min)."
	msgReplyError    = "Fout: %s"
	noteCallFailed   = "[oproep mislukt: %s]"

	truncationMarker = "\n\n... (afgekapt)"
)

const helpTask = `**Taak:** %s

**Taak afronden:**
- Zeg "taak afronden", "we zijn klaar", "taak is af", etc.
- Of typ /done

**Commando's:**
/done - Markeer taak als afgerond
/status - Toon taak status
/share /pad/bestand - Deel bestand uit Nextcloud
/upload /lokaal/pad - Upload lokaal bestand naar chat
/preview /pad/document - Preview PDF, ODT, DOCX of HTML
/remember <feit> - Sla belangrijk feit op
/facts - Toon opgeslagen feiten
/forget <nr> - Vergeet een feit
/reset - Wis gespreksgeschiedenis
/help - Toon dit help bericht`

const helpGeneral = `**Commando's:**

**Geheugen:**
/remember <feit> - Sla een belangrijk feit op (ik onthoud dit!)
/facts - Toon opgeslagen feiten
/forget <nr> - Vergeet een feit

**Taken:**
/task <titel> - Maak nieuwe Deck taak aan
/task <titel> | <beschrijving> - Met beschrijving
/boards - Toon jouw Deck boards

**Bestanden:**
/zoek zoekterm - Zoek bestanden in Nextcloud
/vind zoekterm - Zoek en deel automatisch eerste resultaat
/share /pad/bestand - Deel bestand uit Nextcloud
/upload /lokaal/pad - Upload lokaal bestand naar chat
/preview /pad/document - Preview PDF, ODT, DOCX of HTML

**Audio:**
/transcribe - Transcribeer audio (stuur eerst audio)

**Overig:**
/reset - Wis gespreksgeschiedenis
/history - Toon aantal berichten
/whoami - Toon bot info
/help - Dit help bericht

**Tip:** Gebruik /remember om belangrijke dingen te onthouden, dan vergeet ik ze niet!`

const statusTemplate = `**Taak Status**

**Taak:** %s
**Status:** %s
**Card ID:** %d
**Aangemaakt:** %s
%s
Typ /done om deze taak af te ronden.`

// Usage hints for prefix commands given without an argument.
const (
	usageRemember = "Gebruik: /remember <feit om te onthouden>"
	usageForget   = "Gebruik: /forget <nummer>"
	usageTask     = "Gebruik: /task <taak titel>\n\nVoorbeeld: /task Offerte maken voor klant X"
	usageShare    = "Gebruik: /share /pad/naar/bestand.pdf"
	usageUpload   = "Gebruik: /upload /pad/naar/lokaal/bestand.pdf\n\nVoorbeeld: /upload /home/maarten/OpenBooks/index.html"
	usageZoek     = "Gebruik: /zoek zoekterm\n\nVoorbeeld: /zoek offerte\nVoorbeeld: /zoek rapport.pdf"
	usageVind     = "Gebruik: /vind zoekterm\n\nZoekt en deelt automatisch het eerste resultaat.\nVoorbeeld: /vind offerte-2024.pdf"
	usagePreview  = "Gebruik: /preview /pad/naar/document\n\nOndersteunde formaten: PDF, ODT, DOCX, HTML"
)
